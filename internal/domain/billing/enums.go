package billing

import "strings"

// BillSource identifies the clinical module a bill originates from.
type BillSource string

const (
	BillSourceEncounters BillSource = "ENCOUNTERS"
	BillSourceImaging    BillSource = "IMAGING"
	BillSourceLaboratory BillSource = "LABORATORY"
	BillSourceInventory  BillSource = "INVENTORY"
	BillSourcePharmacy   BillSource = "PHARMACY"
	BillSourceNursing    BillSource = "NURSING"
	BillSourceFinance    BillSource = "FINANCE"
	BillSourceMessaging  BillSource = "MESSAGING"
)

// BillSources returns all module values in their fixed reporting order.
func BillSources() []BillSource {
	return []BillSource{
		BillSourceEncounters,
		BillSourceImaging,
		BillSourceLaboratory,
		BillSourceInventory,
		BillSourcePharmacy,
		BillSourceNursing,
		BillSourceFinance,
		BillSourceMessaging,
	}
}

// BillSourceFromString resolves a module label case-insensitively.
func BillSourceFromString(s string) (BillSource, bool) {
	for _, src := range BillSources() {
		if strings.EqualFold(string(src), s) {
			return src, true
		}
	}
	return "", false
}

func (s BillSource) Valid() bool {
	_, ok := BillSourceFromString(string(s))
	return ok
}

// PayerSchemeType classifies who is billed and under what arrangement. The
// string values are the external labels persisted and serialized on bills.
type PayerSchemeType string

const (
	PayerSelfPrepaid  PayerSchemeType = "SELF (PREPAID)"
	PayerSelfPostpaid PayerSchemeType = "SELF (POSTPAID)"
	PayerInsurance    PayerSchemeType = "INSURANCE"
	PayerCorporate    PayerSchemeType = "CORPORATE"
)

// payerSchemeTypeNames are the symbolic names accepted alongside the external
// labels when resolving a payer scheme type from a string.
var payerSchemeTypeNames = map[PayerSchemeType]string{
	PayerSelfPrepaid:  "SELF_PREPAID",
	PayerSelfPostpaid: "SELF_POSTPAID",
	PayerInsurance:    "INSURANCE",
	PayerCorporate:    "CORPORATE",
}

// PayerSchemeTypes returns all payer scheme type values.
func PayerSchemeTypes() []PayerSchemeType {
	return []PayerSchemeType{PayerSelfPrepaid, PayerSelfPostpaid, PayerInsurance, PayerCorporate}
}

// PayerSchemeTypeFromString resolves a payer scheme type by comparing the
// input case-insensitively against both the external label and the symbolic
// name of every variant.
func PayerSchemeTypeFromString(s string) (PayerSchemeType, bool) {
	for _, t := range PayerSchemeTypes() {
		if strings.EqualFold(string(t), s) || strings.EqualFold(payerSchemeTypeNames[t], s) {
			return t, true
		}
	}
	return "", false
}

func (t PayerSchemeType) Valid() bool {
	_, ok := PayerSchemeTypeFromString(string(t))
	return ok
}

// IsSelfPay reports whether the type is one of the two self-pay variants.
// Comparison is case-insensitive to tolerate legacy records with
// non-canonical casing.
func (t PayerSchemeType) IsSelfPay() bool {
	return strings.EqualFold(string(t), string(PayerSelfPrepaid)) ||
		strings.EqualFold(string(t), string(PayerSelfPostpaid))
}

// ClearedStatus tracks whether a bill has been settled.
type ClearedStatus string

const (
	Cleared   ClearedStatus = "CLEARED"
	Uncleared ClearedStatus = "UNCLEARED"
)

// InvoiceStatus is the invoice lifecycle state.
type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "DRAFT"
	InvoiceOpen          InvoiceStatus = "OPEN"
	InvoicePartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoicePaid          InvoiceStatus = "PAID"
	InvoiceCancelled     InvoiceStatus = "CANCELLED"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceOpen, InvoicePartiallyPaid, InvoicePaid, InvoiceCancelled:
		return true
	}
	return false
}

// EncounterType distinguishes admitted from ambulatory billing.
type EncounterType string

const (
	InPatient  EncounterType = "IN_PATIENT"
	OutPatient EncounterType = "OUT_PATIENT"
)

func (t EncounterType) Valid() bool {
	return t == InPatient || t == OutPatient
}

// CoPayType tags how a bill's co-pay is expressed.
type CoPayType string

const (
	CoPayAmount     CoPayType = "AMOUNT"
	CoPayPercentage CoPayType = "PERCENTAGE"
)

func (t CoPayType) Valid() bool {
	return t == CoPayAmount || t == CoPayPercentage
}
