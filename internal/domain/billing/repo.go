package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BillRepository interface {
	Create(ctx context.Context, b *Bill) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bill, error)
	Update(ctx context.Context, b *Bill) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params map[string]string, limit, offset int) ([]*Bill, int, error)
	// ListForReport returns all bills matching the filter params without
	// pagination, for the revenue generators.
	ListForReport(ctx context.Context, params map[string]string) ([]*Bill, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Bill, error)
}

type PayerSchemeRepository interface {
	Create(ctx context.Context, ps *PayerScheme) error
	GetByID(ctx context.Context, id uuid.UUID) (*PayerScheme, error)
	Update(ctx context.Context, ps *PayerScheme) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*PayerScheme, int, error)
}

type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	List(ctx context.Context, params map[string]string, limit, offset int) ([]*Invoice, int, error)
	// NextSequence atomically increments and returns the invoice serial for
	// the given year-month period key.
	NextSequence(ctx context.Context, period string) (int, error)
}

// PatientAccount is the live deposit account the reserve/unreserve path
// operates on. Implemented by the patient domain.
type PatientAccount interface {
	AccountID() uuid.UUID
	DepositBalance() decimal.Decimal
	SendToReserve(amount decimal.Decimal) error
	PayFromReserve(amount decimal.Decimal) error
	AddDeposit(amount decimal.Decimal) error
	Snapshot() PatientSnapshot
}

// PatientDirectory resolves and persists live patient accounts by ID.
type PatientDirectory interface {
	GetAccount(ctx context.Context, id uuid.UUID) (PatientAccount, error)
	SaveAccount(ctx context.Context, acct PatientAccount) error
}

// PostPaymentAction is the per-module hook invoked after a bill is cleared by
// payment. Clinical modules register one at startup.
type PostPaymentAction interface {
	PostPaymentAction(ctx context.Context, b *Bill) error
}

// PostPaymentRegistry maps a bill source to its module hook. A missing entry
// means the module has no post-payment behavior.
type PostPaymentRegistry map[BillSource]PostPaymentAction
