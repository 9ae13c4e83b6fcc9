package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TxRunner executes fn atomically. In production it wraps db.WithTx so every
// mutating ledger operation is all-or-nothing; tests pass the identity runner.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// PassthroughTx is a TxRunner with no transactional boundary.
func PassthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type Service struct {
	bills    BillRepository
	schemes  PayerSchemeRepository
	invoices InvoiceRepository
	patients PatientDirectory
	registry PostPaymentRegistry
	prefix   string
	runTx    TxRunner
	now      func() time.Time
	logger   zerolog.Logger

	mu           sync.Mutex
	patientLocks map[uuid.UUID]*sync.Mutex
}

func NewService(bills BillRepository, schemes PayerSchemeRepository, invoices InvoiceRepository,
	patients PatientDirectory, registry PostPaymentRegistry, prefix string, runTx TxRunner, logger zerolog.Logger) *Service {
	if registry == nil {
		registry = PostPaymentRegistry{}
	}
	if runTx == nil {
		runTx = PassthroughTx
	}
	return &Service{
		bills:        bills,
		schemes:      schemes,
		invoices:     invoices,
		patients:     patients,
		registry:     registry,
		prefix:       prefix,
		runTx:        runTx,
		now:          time.Now,
		logger:       logger,
		patientLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// patientLock returns the mutex serializing reserve/unreserve operations for
// one patient. Two concurrent reservations must not both pass the deposit
// sufficiency check.
func (s *Service) patientLock(patientID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.patientLocks[patientID]
	if !ok {
		l = &sync.Mutex{}
		s.patientLocks[patientID] = l
	}
	return l
}

// -- Bills --

func (s *Service) CreateBill(ctx context.Context, b *Bill, patientID uuid.UUID) error {
	if b.BillItemCode == "" {
		return NewValidationError("bill_item_code is required")
	}
	if !b.BillSource.Valid() {
		return NewValidationError(fmt.Sprintf("invalid bill_source: %s", b.BillSource))
	}
	t, ok := PayerSchemeTypeFromString(string(b.BilledToType))
	if !ok {
		return NewValidationError(fmt.Sprintf("invalid billed_to_type: %s", b.BilledToType))
	}
	b.BilledToType = t
	if b.CostPrice.IsNegative() || b.SellingPrice.IsNegative() {
		return NewValidationError("prices cannot be negative")
	}
	if b.Quantity < 1 {
		return NewValidationError("quantity must be at least 1")
	}
	if b.CoPay != nil && !b.CoPay.Type.Valid() {
		return NewValidationError(fmt.Sprintf("invalid co_pay type: %s", b.CoPay.Type))
	}
	if b.BilledTo != nil {
		if _, err := s.schemes.GetByID(ctx, *b.BilledTo); err != nil {
			return fmt.Errorf("resolve payer scheme: %w", err)
		}
	}

	acct, err := s.patients.GetAccount(ctx, patientID)
	if err != nil {
		return fmt.Errorf("resolve patient: %w", err)
	}
	b.Patient = acct.Snapshot()

	if b.ClearedStatus == "" {
		b.ClearedStatus = Uncleared
	}
	b.TransactionDate = s.now().UTC()
	return s.bills.Create(ctx, b)
}

func (s *Service) GetBill(ctx context.Context, id uuid.UUID) (*Bill, error) {
	return s.bills.GetByID(ctx, id)
}

func (s *Service) ListBills(ctx context.Context, params map[string]string, limit, offset int) ([]*Bill, int, error) {
	return s.bills.List(ctx, params, limit, offset)
}

func (s *Service) DeleteBill(ctx context.Context, id uuid.UUID) error {
	b, err := s.bills.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if b.IsReserved {
		return NewValidationError("cannot delete a reserved bill")
	}
	if b.IsInvoiced {
		return NewValidationError("cannot delete an invoiced bill")
	}
	return s.bills.Delete(ctx, id)
}

// ReserveBill earmarks the bill's selling price from the patient's deposit.
// Preconditions are checked in order; the first failure wins and nothing is
// applied.
func (s *Service) ReserveBill(ctx context.Context, billID uuid.UUID, actor *UserSnapshot) (*Bill, error) {
	b, err := s.bills.GetByID(ctx, billID)
	if err != nil {
		return nil, err
	}

	lock := s.patientLock(b.Patient.ID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock; the flags may have changed while waiting.
	b, err = s.bills.GetByID(ctx, billID)
	if err != nil {
		return nil, err
	}

	if b.IsReserved {
		return nil, NewValidationError("bill is already reserved")
	}
	if b.IsInvoiced {
		return nil, NewValidationError("bill has already been invoiced")
	}
	if b.IsServiceRendered {
		return nil, NewValidationError("service has already been rendered for this bill")
	}
	if !b.BilledToType.IsSelfPay() {
		return nil, NewValidationError("only self-pay bills can be reserved")
	}

	acct, err := s.patients.GetAccount(ctx, b.Patient.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve patient: %w", err)
	}
	if acct.DepositBalance().LessThan(b.SellingPrice) {
		return nil, NewValidationError("insufficient deposit balance")
	}

	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := acct.SendToReserve(b.SellingPrice); err != nil {
			return err
		}
		if err := s.patients.SaveAccount(ctx, acct); err != nil {
			return err
		}
		b.IsReserved = true
		b.ClearedStatus = Cleared
		b.UpdatedBy = actor
		return s.bills.Update(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("bill_id", b.ID.String()).
		Str("patient_id", b.Patient.ID.String()).
		Str("amount", b.SellingPrice.String()).
		Msg("bill reserved")
	return b, nil
}

// UnreserveBill releases a reservation, restoring the selling price to the
// patient's deposit. Reserve followed by unreserve is a net no-op.
func (s *Service) UnreserveBill(ctx context.Context, billID uuid.UUID, actor *UserSnapshot) (*Bill, error) {
	b, err := s.bills.GetByID(ctx, billID)
	if err != nil {
		return nil, err
	}

	lock := s.patientLock(b.Patient.ID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock; the flags may have changed while waiting.
	b, err = s.bills.GetByID(ctx, billID)
	if err != nil {
		return nil, err
	}

	if !b.IsReserved {
		return nil, NewValidationError("bill is not reserved")
	}
	if b.IsInvoiced {
		return nil, NewValidationError("bill has already been invoiced")
	}
	if b.IsServiceRendered {
		return nil, NewValidationError("service has already been rendered for this bill")
	}
	if !b.BilledToType.IsSelfPay() {
		return nil, NewValidationError("only self-pay bills can be unreserved")
	}

	acct, err := s.patients.GetAccount(ctx, b.Patient.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve patient: %w", err)
	}

	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := acct.PayFromReserve(b.SellingPrice); err != nil {
			return err
		}
		if err := acct.AddDeposit(b.SellingPrice); err != nil {
			return err
		}
		if err := s.patients.SaveAccount(ctx, acct); err != nil {
			return err
		}
		b.IsReserved = false
		b.ClearedStatus = Uncleared
		b.UpdatedBy = actor
		return s.bills.Update(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("bill_id", b.ID.String()).
		Str("patient_id", b.Patient.ID.String()).
		Msg("bill unreserved")
	return b, nil
}

// IsCleared reports whether the bill has been settled.
func (s *Service) IsCleared(ctx context.Context, billID uuid.UUID) (bool, error) {
	b, err := s.bills.GetByID(ctx, billID)
	if err != nil {
		return false, err
	}
	return b.IsCleared(), nil
}

// PayBill marks the bill cleared and service-rendered. A reserved bill is
// settled from the reserved balance. After persisting, the module-specific
// post-payment hook runs at most once.
func (s *Service) PayBill(ctx context.Context, billID uuid.UUID, actor *UserSnapshot) (*Bill, error) {
	b, err := s.bills.GetByID(ctx, billID)
	if err != nil {
		return nil, err
	}

	lock := s.patientLock(b.Patient.ID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock; the flags may have changed while waiting.
	b, err = s.bills.GetByID(ctx, billID)
	if err != nil {
		return nil, err
	}

	if b.IsCleared() && b.IsServiceRendered {
		return nil, NewValidationError("bill is already settled")
	}

	err = s.runTx(ctx, func(ctx context.Context) error {
		if b.IsReserved {
			acct, err := s.patients.GetAccount(ctx, b.Patient.ID)
			if err != nil {
				return fmt.Errorf("resolve patient: %w", err)
			}
			if err := acct.PayFromReserve(b.SellingPrice); err != nil {
				return err
			}
			if err := s.patients.SaveAccount(ctx, acct); err != nil {
				return err
			}
			b.IsReserved = false
		}
		now := s.now().UTC()
		b.ClearedStatus = Cleared
		b.IsServiceRendered = true
		b.ServiceRenderedAt = &now
		b.UpdatedBy = actor
		return s.bills.Update(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.runPostPaymentAction(ctx, b)
	return b, nil
}

// runPostPaymentAction dispatches the cleared bill to its module hook. A
// missing registry entry is a no-op; a hook failure is logged, not surfaced,
// since the payment itself has already been applied.
func (s *Service) runPostPaymentAction(ctx context.Context, b *Bill) {
	action, ok := s.registry[b.BillSource]
	if !ok {
		return
	}
	if err := action.PostPaymentAction(ctx, b); err != nil {
		s.logger.Error().Err(err).
			Str("bill_id", b.ID.String()).
			Str("bill_source", string(b.BillSource)).
			Msg("post-payment action failed")
	}
}

// -- Payer Schemes --

func (s *Service) CreatePayerScheme(ctx context.Context, ps *PayerScheme) error {
	if ps.Name == "" {
		return NewValidationError("name is required")
	}
	t, ok := PayerSchemeTypeFromString(string(ps.Type))
	if !ok {
		return NewValidationError(fmt.Sprintf("invalid payer scheme type: %s", ps.Type))
	}
	ps.Type = t
	return s.schemes.Create(ctx, ps)
}

func (s *Service) GetPayerScheme(ctx context.Context, id uuid.UUID) (*PayerScheme, error) {
	return s.schemes.GetByID(ctx, id)
}

func (s *Service) UpdatePayerScheme(ctx context.Context, ps *PayerScheme) error {
	if ps.Type != "" {
		t, ok := PayerSchemeTypeFromString(string(ps.Type))
		if !ok {
			return NewValidationError(fmt.Sprintf("invalid payer scheme type: %s", ps.Type))
		}
		ps.Type = t
	}
	return s.schemes.Update(ctx, ps)
}

func (s *Service) DeletePayerScheme(ctx context.Context, id uuid.UUID) error {
	return s.schemes.Delete(ctx, id)
}

func (s *Service) ListPayerSchemes(ctx context.Context, limit, offset int) ([]*PayerScheme, int, error) {
	return s.schemes.List(ctx, limit, offset)
}

// -- Invoices --

// CreateInvoice aggregates the given bills into a DRAFT invoice, snapshotting
// each as a bill line. Reserved and already-invoiced bills are rejected:
// reservation and invoicing are mutually exclusive gates on a bill.
func (s *Service) CreateInvoice(ctx context.Context, billIDs []uuid.UUID, encounterType EncounterType, createdBy *UserSnapshot) (*Invoice, error) {
	if len(billIDs) == 0 {
		return nil, NewValidationError("an invoice requires at least one bill")
	}
	if !encounterType.Valid() {
		return nil, NewValidationError(fmt.Sprintf("invalid encounter_type: %s", encounterType))
	}

	bills := make([]*Bill, 0, len(billIDs))
	for _, id := range billIDs {
		b, err := s.bills.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve bill %s: %w", id, err)
		}
		if b.IsInvoiced {
			return nil, NewValidationError(fmt.Sprintf("bill %s has already been invoiced", id))
		}
		if b.IsReserved {
			return nil, NewValidationError(fmt.Sprintf("bill %s is reserved and cannot be invoiced", id))
		}
		bills = append(bills, b)
	}
	for _, b := range bills {
		if b.Patient.ID != bills[0].Patient.ID {
			return nil, NewValidationError("all bills on an invoice must belong to the same patient")
		}
	}

	inv := &Invoice{
		ID:            uuid.New(),
		Patient:       bills[0].Patient,
		Status:        InvoiceDraft,
		EncounterType: encounterType,
		CreatedBy:     createdBy,
		BillLines:     make([]BillLine, 0, len(bills)),
		PaymentLines:  []PaymentLine{},
	}
	for _, b := range bills {
		line := BillLine{
			BillID:       b.ID,
			BillItemCode: b.BillItemCode,
			Description:  b.Description,
			BillSource:   b.BillSource,
			Quantity:     b.Quantity,
			SellingPrice: b.SellingPrice,
			Amount:       b.SellingPrice,
		}
		inv.BillLines = append(inv.BillLines, line)
		inv.TotalCharge = inv.TotalCharge.Add(line.Amount)
	}
	inv.RecomputeBalance()

	err := s.runTx(ctx, func(ctx context.Context) error {
		if err := s.invoices.Create(ctx, inv); err != nil {
			return err
		}
		for _, b := range bills {
			b.IsInvoiced = true
			invID := inv.ID
			b.InvoiceID = &invID
			if err := s.bills.Update(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.invoices.GetByID(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context, params map[string]string, limit, offset int) ([]*Invoice, int, error) {
	return s.invoices.List(ctx, params, limit, offset)
}

// ConfirmInvoice promotes a DRAFT invoice to OPEN and assigns its sequential
// invoice number. Confirming an already-confirmed invoice is a no-op
// returning the existing state.
func (s *Service) ConfirmInvoice(ctx context.Context, id uuid.UUID, confirmedBy *UserSnapshot, dueDate *time.Time) (*Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == InvoiceCancelled {
		return nil, NewValidationError("cannot confirm a cancelled invoice")
	}
	if inv.InvID != nil {
		return inv, nil
	}

	err = s.runTx(ctx, func(ctx context.Context) error {
		if inv.Status == InvoiceDraft {
			now := s.now().UTC()
			inv.Status = InvoiceOpen
			inv.ConfirmedAt = &now
			inv.ConfirmedBy = confirmedBy
			if dueDate != nil {
				inv.DueDate = dueDate
			}
		}
		if err := s.assignInvoiceID(ctx, inv); err != nil {
			return err
		}
		return s.invoices.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("invoice_id", inv.ID.String()).
		Str("inv_id", *inv.InvID).
		Msg("invoice confirmed")
	return inv, nil
}

// assignInvoiceID stamps inv_id = prefix + year + month + serial. Idempotent
// when already assigned; a DRAFT invoice explicitly keeps a nil inv_id. The
// serial comes from an atomic per-month counter, restarting at 1 each month.
func (s *Service) assignInvoiceID(ctx context.Context, inv *Invoice) error {
	if inv.InvID != nil {
		return nil
	}
	if inv.Status == InvoiceDraft {
		return nil
	}
	now := s.now().UTC()
	period := now.Format("200601")
	serial, err := s.invoices.NextSequence(ctx, period)
	if err != nil {
		return err
	}
	invID := fmt.Sprintf("%s%s%d", s.prefix, period, serial)
	inv.InvID = &invID
	return nil
}

// RecordInvoicePayment appends a payment line and updates paid amount,
// balance and status.
func (s *Service) RecordInvoicePayment(ctx context.Context, id uuid.UUID, line PaymentLine) (*Invoice, error) {
	if !line.Amount.IsPositive() {
		return nil, NewValidationError("payment amount must be positive")
	}
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch inv.Status {
	case InvoiceDraft:
		return nil, NewValidationError("cannot record a payment against a draft invoice")
	case InvoiceCancelled:
		return nil, NewValidationError("cannot record a payment against a cancelled invoice")
	case InvoicePaid:
		return nil, NewValidationError("invoice is already fully paid")
	}
	if line.Amount.GreaterThan(inv.Balance) {
		return nil, NewValidationError("payment amount exceeds the outstanding balance")
	}

	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	if line.PaidAt.IsZero() {
		line.PaidAt = s.now().UTC()
	}

	err = s.runTx(ctx, func(ctx context.Context) error {
		inv.AddPaymentLine(line)
		return s.invoices.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// CancelInvoice cancels the invoice and releases its bills back to the
// uninvoiced pool.
func (s *Service) CancelInvoice(ctx context.Context, id uuid.UUID, cancelledBy *UserSnapshot) (*Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == InvoiceCancelled {
		return nil, NewValidationError("invoice is already cancelled")
	}
	if inv.Status == InvoicePaid {
		return nil, NewValidationError("cannot cancel a fully paid invoice")
	}

	err = s.runTx(ctx, func(ctx context.Context) error {
		now := s.now().UTC()
		inv.Status = InvoiceCancelled
		inv.CancelledAt = &now
		inv.CancelledBy = cancelledBy
		if err := s.invoices.Update(ctx, inv); err != nil {
			return err
		}
		bills, err := s.bills.ListByInvoice(ctx, inv.ID)
		if err != nil {
			return err
		}
		for _, b := range bills {
			b.IsInvoiced = false
			b.InvoiceID = nil
			if err := s.bills.Update(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}
