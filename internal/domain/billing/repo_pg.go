package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/query"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Bill Repository ===========

type billRepoPG struct{ pool *pgxpool.Pool }

func NewBillRepoPG(pool *pgxpool.Pool) BillRepository { return &billRepoPG{pool: pool} }

func (r *billRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const billCols = `id, bill_item_code, description, cost_price, selling_price, quantity, co_pay,
	bill_source, billed_to_type, billed_to,
	cleared_status, is_service_rendered, serviced_rendered_at,
	is_invoiced, invoice_id, is_reserved, is_capitated,
	is_auth_req, post_auth_allowed, auth_code,
	patient, transaction_date, updated_by, created_at, updated_at`

func scanBill(row pgx.Row) (*Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.BillItemCode, &b.Description, &b.CostPrice, &b.SellingPrice, &b.Quantity, &b.CoPay,
		&b.BillSource, &b.BilledToType, &b.BilledTo,
		&b.ClearedStatus, &b.IsServiceRendered, &b.ServiceRenderedAt,
		&b.IsInvoiced, &b.InvoiceID, &b.IsReserved, &b.IsCapitated,
		&b.IsAuthReq, &b.PostAuthAllowed, &b.AuthCode,
		&b.Patient, &b.TransactionDate, &b.UpdatedBy, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &b, err
}

func (r *billRepoPG) Create(ctx context.Context, b *Bill) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO bill (id, bill_item_code, description, cost_price, selling_price, quantity, co_pay,
			bill_source, billed_to_type, billed_to,
			cleared_status, is_service_rendered, serviced_rendered_at,
			is_invoiced, invoice_id, is_reserved, is_capitated,
			is_auth_req, post_auth_allowed, auth_code,
			patient, transaction_date, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
		b.ID, b.BillItemCode, b.Description, b.CostPrice, b.SellingPrice, b.Quantity, b.CoPay,
		b.BillSource, b.BilledToType, b.BilledTo,
		b.ClearedStatus, b.IsServiceRendered, b.ServiceRenderedAt,
		b.IsInvoiced, b.InvoiceID, b.IsReserved, b.IsCapitated,
		b.IsAuthReq, b.PostAuthAllowed, b.AuthCode,
		b.Patient, b.TransactionDate, b.UpdatedBy)
	return err
}

func (r *billRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bill, error) {
	return scanBill(r.conn(ctx).QueryRow(ctx, `SELECT `+billCols+` FROM bill WHERE id = $1`, id))
}

func (r *billRepoPG) Update(ctx context.Context, b *Bill) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE bill SET description=$2, cost_price=$3, selling_price=$4, quantity=$5, co_pay=$6,
			cleared_status=$7, is_service_rendered=$8, serviced_rendered_at=$9,
			is_invoiced=$10, invoice_id=$11, is_reserved=$12, is_capitated=$13,
			is_auth_req=$14, post_auth_allowed=$15, auth_code=$16,
			updated_by=$17, updated_at=NOW()
		WHERE id = $1`,
		b.ID, b.Description, b.CostPrice, b.SellingPrice, b.Quantity, b.CoPay,
		b.ClearedStatus, b.IsServiceRendered, b.ServiceRenderedAt,
		b.IsInvoiced, b.InvoiceID, b.IsReserved, b.IsCapitated,
		b.IsAuthReq, b.PostAuthAllowed, b.AuthCode,
		b.UpdatedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *billRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM bill WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var billFilterParams = map[string]query.ParamConfig{
	"bill_source":    {Type: query.ParamToken, Column: "bill_source"},
	"bill_item_code": {Type: query.ParamToken, Column: "bill_item_code"},
	"billed_to_type": {Type: query.ParamToken, Column: "billed_to_type"},
	"cleared_status": {Type: query.ParamToken, Column: "cleared_status"},
	"patient":        {Type: query.ParamToken, Column: "(patient->>'id')"},
	"invoiced":       {Type: query.ParamBool, Column: "is_invoiced"},
	"reserved":       {Type: query.ParamBool, Column: "is_reserved"},
	"date":           {Type: query.ParamDate, Column: "transaction_date"},
	"amount":         {Type: query.ParamNumber, Column: "selling_price"},
}

func (r *billRepoPG) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Bill, int, error) {
	qb := query.New("bill", billCols)
	qb.ApplyParams(params, billFilterParams)
	qb.OrderBy("transaction_date DESC, created_at DESC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *billRepoPG) ListForReport(ctx context.Context, params map[string]string) ([]*Bill, error) {
	qb := query.New("bill", billCols)
	qb.ApplyParams(params, billFilterParams)
	qb.OrderBy("transaction_date ASC")

	rows, err := r.conn(ctx).Query(ctx, qb.AllSQL(), qb.CountArgs()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *billRepoPG) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Bill, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+billCols+` FROM bill WHERE invoice_id = $1 ORDER BY created_at ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

// =========== PayerScheme Repository ===========

type payerSchemeRepoPG struct{ pool *pgxpool.Pool }

func NewPayerSchemeRepoPG(pool *pgxpool.Pool) PayerSchemeRepository {
	return &payerSchemeRepoPG{pool: pool}
}

func (r *payerSchemeRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const payerSchemeCols = `id, name, type, price_list_name, payer_name, active, created_at, updated_at`

func scanPayerScheme(row pgx.Row) (*PayerScheme, error) {
	var ps PayerScheme
	err := row.Scan(&ps.ID, &ps.Name, &ps.Type, &ps.PriceListName, &ps.PayerName, &ps.Active, &ps.CreatedAt, &ps.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &ps, err
}

func (r *payerSchemeRepoPG) Create(ctx context.Context, ps *PayerScheme) error {
	if ps.ID == uuid.Nil {
		ps.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payer_scheme (id, name, type, price_list_name, payer_name, active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		ps.ID, ps.Name, ps.Type, ps.PriceListName, ps.PayerName, ps.Active)
	return err
}

func (r *payerSchemeRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PayerScheme, error) {
	return scanPayerScheme(r.conn(ctx).QueryRow(ctx, `SELECT `+payerSchemeCols+` FROM payer_scheme WHERE id = $1`, id))
}

func (r *payerSchemeRepoPG) Update(ctx context.Context, ps *PayerScheme) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE payer_scheme SET name=$2, type=$3, price_list_name=$4, payer_name=$5, active=$6, updated_at=NOW()
		WHERE id = $1`,
		ps.ID, ps.Name, ps.Type, ps.PriceListName, ps.PayerName, ps.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *payerSchemeRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM payer_scheme WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *payerSchemeRepoPG) List(ctx context.Context, limit, offset int) ([]*PayerScheme, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM payer_scheme`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+payerSchemeCols+` FROM payer_scheme ORDER BY name ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*PayerScheme
	for rows.Next() {
		ps, err := scanPayerScheme(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, ps)
	}
	return items, total, rows.Err()
}

// =========== Invoice Repository ===========

type invoiceRepoPG struct{ pool *pgxpool.Pool }

func NewInvoiceRepoPG(pool *pgxpool.Pool) InvoiceRepository { return &invoiceRepoPG{pool: pool} }

func (r *invoiceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const invoiceCols = `id, inv_id, patient, bill_lines, payment_lines,
	total_charge, paid_amount, balance, status, encounter_type,
	due_date, confirmed_at, confirmed_by, cancelled_at, cancelled_by,
	created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.InvID, &inv.Patient, &inv.BillLines, &inv.PaymentLines,
		&inv.TotalCharge, &inv.PaidAmount, &inv.Balance, &inv.Status, &inv.EncounterType,
		&inv.DueDate, &inv.ConfirmedAt, &inv.ConfirmedBy, &inv.CancelledAt, &inv.CancelledBy,
		&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &inv, err
}

func (r *invoiceRepoPG) Create(ctx context.Context, inv *Invoice) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO invoice (id, inv_id, patient, bill_lines, payment_lines,
			total_charge, paid_amount, balance, status, encounter_type,
			due_date, confirmed_at, confirmed_by, cancelled_at, cancelled_by, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		inv.ID, inv.InvID, inv.Patient, inv.BillLines, inv.PaymentLines,
		inv.TotalCharge, inv.PaidAmount, inv.Balance, inv.Status, inv.EncounterType,
		inv.DueDate, inv.ConfirmedAt, inv.ConfirmedBy, inv.CancelledAt, inv.CancelledBy, inv.CreatedBy)
	return err
}

func (r *invoiceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invoiceCols+` FROM invoice WHERE id = $1`, id))
}

func (r *invoiceRepoPG) Update(ctx context.Context, inv *Invoice) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoice SET inv_id=$2, bill_lines=$3, payment_lines=$4,
			total_charge=$5, paid_amount=$6, balance=$7, status=$8,
			due_date=$9, confirmed_at=$10, confirmed_by=$11, cancelled_at=$12, cancelled_by=$13,
			updated_at=NOW()
		WHERE id = $1`,
		inv.ID, inv.InvID, inv.BillLines, inv.PaymentLines,
		inv.TotalCharge, inv.PaidAmount, inv.Balance, inv.Status,
		inv.DueDate, inv.ConfirmedAt, inv.ConfirmedBy, inv.CancelledAt, inv.CancelledBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var invoiceFilterParams = map[string]query.ParamConfig{
	"status":         {Type: query.ParamToken, Column: "status"},
	"encounter_type": {Type: query.ParamToken, Column: "encounter_type"},
	"inv_id":         {Type: query.ParamString, Column: "inv_id"},
	"patient":        {Type: query.ParamToken, Column: "(patient->>'id')"},
	"date":           {Type: query.ParamDate, Column: "created_at"},
}

func (r *invoiceRepoPG) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Invoice, int, error) {
	qb := query.New("invoice", invoiceCols)
	qb.ApplyParams(params, invoiceFilterParams)
	qb.OrderBy("created_at DESC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inv)
	}
	return items, total, rows.Err()
}

// NextSequence atomically increments the per-period invoice counter. The
// upsert makes concurrent confirmations in the same month serialize on the
// row, so two invoices can never receive the same serial.
func (r *invoiceRepoPG) NextSequence(ctx context.Context, period string) (int, error) {
	var serial int
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO invoice_sequence (period, serial) VALUES ($1, 1)
		ON CONFLICT (period) DO UPDATE SET serial = invoice_sequence.serial + 1
		RETURNING serial`, period).Scan(&serial)
	if err != nil {
		return 0, fmt.Errorf("next invoice sequence for %s: %w", period, err)
	}
	return serial, nil
}
