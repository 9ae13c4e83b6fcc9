package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/domain/billing"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	p.MRN = strings.TrimSpace(p.MRN)
	if p.MRN == "" {
		return billing.NewValidationError("mrn is required")
	}
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return billing.NewValidationError("first_name and last_name are required")
	}
	if p.Deposit.IsNegative() || p.Reserved.IsNegative() {
		return billing.NewValidationError("balances cannot be negative")
	}

	if existing, err := s.repo.GetByMRN(ctx, p.MRN); err == nil && existing != nil {
		return billing.NewValidationError(fmt.Sprintf("mrn %s is already registered", p.MRN))
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	s.logger.Info().Str("patient_id", p.ID.String()).Str("mrn", p.MRN).Msg("patient registered")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	current, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	// Balances change only through deposit and reservation operations.
	p.MRN = current.MRN
	p.Deposit = current.Deposit
	p.Reserved = current.Reserved
	return s.repo.Update(ctx, p)
}

// TopUpDeposit credits amount to the patient's spendable deposit.
func (s *Service) TopUpDeposit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*Patient, error) {
	if !amount.IsPositive() {
		return nil, billing.NewValidationError("deposit amount must be positive")
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.AddDeposit(amount); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("persist deposit: %w", err)
	}
	s.logger.Info().
		Str("patient_id", id.String()).
		Str("amount", amount.String()).
		Str("deposit", p.Deposit.String()).
		Msg("deposit topped up")
	return p, nil
}
