package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PatientSnapshot is the immutable point-in-time copy of patient identity
// embedded in a bill at creation. It is never resolved as a live relation;
// the reserve/unreserve path re-fetches the live Patient by ID.
type PatientSnapshot struct {
	ID        uuid.UUID `json:"id"`
	MRN       string    `json:"mrn"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
}

// UserSnapshot is the immutable copy of the acting user stamped on audit
// fields.
type UserSnapshot struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Username string    `json:"username,omitempty"`
}

// CoPay is the optional co-payment on a bill, tagged by how it is expressed.
type CoPay struct {
	Type  CoPayType       `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// Bill maps to the bill table: one chargeable line item owning its
// clearance/reservation/invoicing state.
type Bill struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	BillItemCode string          `db:"bill_item_code" json:"bill_item_code"`
	Description  string          `db:"description" json:"description"`
	CostPrice    decimal.Decimal `db:"cost_price" json:"cost_price"`
	SellingPrice decimal.Decimal `db:"selling_price" json:"selling_price"`
	Quantity     int             `db:"quantity" json:"quantity"`
	CoPay        *CoPay          `db:"co_pay" json:"co_pay,omitempty"`

	BillSource   BillSource      `db:"bill_source" json:"bill_source"`
	BilledToType PayerSchemeType `db:"billed_to_type" json:"billed_to_type"`
	BilledTo     *uuid.UUID      `db:"billed_to" json:"billed_to,omitempty"`

	ClearedStatus     ClearedStatus `db:"cleared_status" json:"cleared_status"`
	IsServiceRendered bool          `db:"is_service_rendered" json:"is_service_rendered"`
	ServiceRenderedAt *time.Time    `db:"serviced_rendered_at" json:"serviced_rendered_at,omitempty"`
	IsInvoiced        bool          `db:"is_invoiced" json:"is_invoiced"`
	InvoiceID         *uuid.UUID    `db:"invoice_id" json:"invoice,omitempty"`
	IsReserved        bool          `db:"is_reserved" json:"is_reserved"`
	IsCapitated       bool          `db:"is_capitated" json:"is_capitated"`

	// Prior-authorization workflow pass-through fields.
	IsAuthReq       bool    `db:"is_auth_req" json:"is_auth_req"`
	PostAuthAllowed bool    `db:"post_auth_allowed" json:"post_auth_allowed"`
	AuthCode        *string `db:"auth_code" json:"auth_code,omitempty"`

	Patient PatientSnapshot `db:"patient" json:"patient"`

	TransactionDate time.Time     `db:"transaction_date" json:"transaction_date"`
	UpdatedBy       *UserSnapshot `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// IsCleared reports whether the bill has been settled.
func (b *Bill) IsCleared() bool {
	return b.ClearedStatus == Cleared
}

// PayerScheme is a pricing/billing arrangement naming a price list and a
// payer.
type PayerScheme struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Type          PayerSchemeType `db:"type" json:"type"`
	PriceListName string          `db:"price_list_name" json:"price_list_name"`
	PayerName     string          `db:"payer_name" json:"payer_name"`
	Active        bool            `db:"active" json:"active"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// BillLine is the ordered snapshot of a bill embedded in an invoice at
// creation. It does not follow later changes to the bill.
type BillLine struct {
	BillID       uuid.UUID       `json:"bill_id"`
	BillItemCode string          `json:"bill_item_code"`
	Description  string          `json:"description"`
	BillSource   BillSource      `json:"bill_source"`
	Quantity     int             `json:"quantity"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Amount       decimal.Decimal `json:"amount"`
}

// PaymentLine is an ordered snapshot of a payment recorded against an
// invoice.
type PaymentLine struct {
	ID         uuid.UUID       `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	Reference  *string         `json:"reference,omitempty"`
	PaidAt     time.Time       `json:"paid_at"`
	ReceivedBy *UserSnapshot   `json:"received_by,omitempty"`
}

// Invoice aggregates bills into a billable unit. InvID stays nil until the
// invoice is confirmed out of DRAFT; once assigned it never changes.
type Invoice struct {
	ID      uuid.UUID       `db:"id" json:"id"`
	InvID   *string         `db:"inv_id" json:"inv_id,omitempty"`
	Patient PatientSnapshot `db:"patient" json:"patient"`

	BillLines    []BillLine    `db:"bill_lines" json:"bill_lines"`
	PaymentLines []PaymentLine `db:"payment_lines" json:"payment_lines"`

	TotalCharge decimal.Decimal `db:"total_charge" json:"total_charge"`
	PaidAmount  decimal.Decimal `db:"paid_amount" json:"paid_amount"`
	Balance     decimal.Decimal `db:"balance" json:"balance"`

	Status        InvoiceStatus `db:"status" json:"status"`
	EncounterType EncounterType `db:"encounter_type" json:"encounter_type"`

	DueDate     *time.Time    `db:"due_date" json:"due_date,omitempty"`
	ConfirmedAt *time.Time    `db:"confirmed_at" json:"confirmed_at,omitempty"`
	ConfirmedBy *UserSnapshot `db:"confirmed_by" json:"confirmed_by,omitempty"`
	CancelledAt *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy *UserSnapshot `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CreatedBy   *UserSnapshot `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// RecomputeBalance restores the balance = total_charge - paid_amount
// invariant after any change to the paid amount.
func (inv *Invoice) RecomputeBalance() {
	inv.Balance = inv.TotalCharge.Sub(inv.PaidAmount)
}

// AddPaymentLine appends a payment snapshot and updates paid amount, balance
// and status.
func (inv *Invoice) AddPaymentLine(line PaymentLine) {
	inv.PaymentLines = append(inv.PaymentLines, line)
	inv.PaidAmount = inv.PaidAmount.Add(line.Amount)
	inv.RecomputeBalance()
	if inv.PaidAmount.GreaterThanOrEqual(inv.TotalCharge) {
		inv.Status = InvoicePaid
	} else {
		inv.Status = InvoicePartiallyPaid
	}
}
