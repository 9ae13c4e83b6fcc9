package revenue

import (
	"context"
	"fmt"

	"github.com/hms/hms/internal/domain/billing"
)

// BillSource supplies the bills a report run aggregates over. The billing
// repository satisfies it.
type BillSource interface {
	ListForReport(ctx context.Context, params map[string]string) ([]*billing.Bill, error)
}

type Service struct {
	bills BillSource
}

func NewService(bills BillSource) *Service {
	return &Service{bills: bills}
}

func (s *Service) Summary(ctx context.Context, params map[string]string, invoiced bool) ([]SummaryRow, error) {
	bills, err := s.bills.ListForReport(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("load bills: %w", err)
	}
	return SummaryRows(bills, invoiced), nil
}

func (s *Service) Detail(ctx context.Context, params map[string]string, invoiced bool) ([]DetailRow, error) {
	bills, err := s.bills.ListForReport(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("load bills: %w", err)
	}
	return DetailRows(bills, invoiced), nil
}
