package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/billing"
)

// Directory adapts the patient repository to the account lookup the billing
// service depends on.
type Directory struct {
	repo Repository
}

func NewDirectory(repo Repository) *Directory {
	return &Directory{repo: repo}
}

func (d *Directory) GetAccount(ctx context.Context, id uuid.UUID) (billing.PatientAccount, error) {
	p, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (d *Directory) SaveAccount(ctx context.Context, acct billing.PatientAccount) error {
	p, ok := acct.(*Patient)
	if !ok {
		return fmt.Errorf("unexpected account type %T", acct)
	}
	return d.repo.Update(ctx, p)
}
