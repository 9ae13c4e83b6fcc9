// Package revenue computes reporting aggregates over the bill ledger.
package revenue

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/domain/billing"
)

// SummaryRow is a per-module revenue aggregate.
type SummaryRow struct {
	Module      billing.BillSource `json:"module"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Count       int                `json:"count"`
}

// DetailRow is a per-billing-code revenue aggregate.
type DetailRow struct {
	BillSource    billing.BillSource `json:"bill_source"`
	BillItemCode  string             `json:"bill_item_code"`
	Description   string             `json:"description"`
	TotalQuantity int                `json:"total_quantity"`
	TotalAmount   decimal.Decimal    `json:"total_amount"`
	Count         int                `json:"count"`
}

// SummaryRows aggregates bills per module, restricted to the given invoiced
// flag. Every module appears in the result, zero-match modules as {0, 0} rows.
func SummaryRows(bills []*billing.Bill, invoiced bool) []SummaryRow {
	totals := make(map[billing.BillSource]*SummaryRow)
	modules := billing.BillSources()
	rows := make([]SummaryRow, len(modules))
	for i, m := range modules {
		rows[i] = SummaryRow{Module: m, TotalAmount: decimal.Zero}
		totals[m] = &rows[i]
	}
	for _, b := range bills {
		if b.IsInvoiced != invoiced {
			continue
		}
		row, ok := totals[b.BillSource]
		if !ok {
			continue
		}
		row.TotalAmount = row.TotalAmount.Add(b.SellingPrice)
		row.Count++
	}
	return rows
}

// DetailRows groups bills matching the invoiced flag by bill_item_code. Codes
// with no matching bills produce no row. The result is ordered by code.
func DetailRows(bills []*billing.Bill, invoiced bool) []DetailRow {
	byCode := make(map[string]*DetailRow)
	for _, b := range bills {
		if b.IsInvoiced != invoiced {
			continue
		}
		row, ok := byCode[b.BillItemCode]
		if !ok {
			row = &DetailRow{
				BillSource:   b.BillSource,
				BillItemCode: b.BillItemCode,
				Description:  b.Description,
				TotalAmount:  decimal.Zero,
			}
			byCode[b.BillItemCode] = row
		}
		row.TotalQuantity += b.Quantity
		row.TotalAmount = row.TotalAmount.Add(b.SellingPrice)
		row.Count++
	}

	rows := make([]DetailRow, 0, len(byCode))
	for _, row := range byCode {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].BillItemCode < rows[j].BillItemCode })
	return rows
}
