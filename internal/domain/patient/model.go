package patient

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/domain/billing"
)

// Patient maps to the patient table. The deposit and reserved columns form the
// patient's deposit account: deposit is spendable, reserved is the amount
// earmarked against reserved bills. Both are exact decimals and never negative.
type Patient struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	MRN        string          `db:"mrn" json:"mrn"`
	FirstName  string          `db:"first_name" json:"first_name"`
	LastName   string          `db:"last_name" json:"last_name"`
	MiddleName *string         `db:"middle_name" json:"middle_name,omitempty"`
	Phone      *string         `db:"phone" json:"phone,omitempty"`
	Email      *string         `db:"email" json:"email,omitempty"`
	Deposit    decimal.Decimal `db:"deposit" json:"deposit"`
	Reserved   decimal.Decimal `db:"reserved" json:"reserved"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// AccountID identifies the deposit account. Part of the billing.PatientAccount
// contract.
func (p *Patient) AccountID() uuid.UUID { return p.ID }

// DepositBalance returns the spendable deposit balance.
func (p *Patient) DepositBalance() decimal.Decimal { return p.Deposit }

// SendToReserve moves amount from the spendable deposit into the reserved
// balance. The caller is responsible for holding the per-patient lock; the
// sufficiency check here is a backstop against calling errors.
func (p *Patient) SendToReserve(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return billing.NewValidationError("reserve amount cannot be negative")
	}
	if p.Deposit.LessThan(amount) {
		return billing.NewValidationError("insufficient deposit balance")
	}
	p.Deposit = p.Deposit.Sub(amount)
	p.Reserved = p.Reserved.Add(amount)
	return nil
}

// PayFromReserve releases amount from the reserved balance.
func (p *Patient) PayFromReserve(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return billing.NewValidationError("release amount cannot be negative")
	}
	if p.Reserved.LessThan(amount) {
		return billing.NewValidationError("release amount exceeds reserved balance")
	}
	p.Reserved = p.Reserved.Sub(amount)
	return nil
}

// AddDeposit credits amount to the spendable deposit.
func (p *Patient) AddDeposit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return billing.NewValidationError("deposit amount cannot be negative")
	}
	p.Deposit = p.Deposit.Add(amount)
	return nil
}

// Snapshot returns the immutable identity copy embedded in bills at creation
// time.
func (p *Patient) Snapshot() billing.PatientSnapshot {
	return billing.PatientSnapshot{
		ID:        p.ID,
		MRN:       p.MRN,
		FirstName: p.FirstName,
		LastName:  p.LastName,
	}
}
