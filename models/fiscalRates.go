package models

import "github.com/shopspring/decimal"

// Static fiscal constants (Code des impôts). Pure data; everything that
// computes from invoices or purchases lives elsewhere.

var (
	// VAT (TVA) rates.
	VatRateStandard = decimal.NewFromInt(19)
	VatRateReduced  = decimal.NewFromInt(9)
	VatRateZero     = decimal.Zero

	// IFU flat-rate regime: forfait rates applied to turnover.
	IfuRateGoods    = decimal.NewFromInt(5)
	IfuRateServices = decimal.NewFromInt(12)

	// Auto-entrepreneur: single rate on total turnover.
	AutoEntrepreneurRate = decimal.NewFromFloat(0.5)

	// Tolerance when comparing paid amounts against invoice totals.
	PaidAmountEpsilon = decimal.NewFromFloat(0.01)
)

// IbsRateFor returns the corporate profit tax (IBS) rate for a main
// activity: 19% production, 23% construction/public works and tourism,
// 26% everything else.
func IbsRateFor(activity MainActivity) decimal.Decimal {
	switch activity {
	case MainActivityProduction:
		return decimal.NewFromInt(19)
	case MainActivityConstruction, MainActivityTourism:
		return decimal.NewFromInt(23)
	default:
		return decimal.NewFromInt(26)
	}
}

// IfuRateForKind returns the flat-rate (forfait) rate for a turnover kind.
func IfuRateForKind(kind ItemKind) decimal.Decimal {
	if kind == ItemKindServices {
		return IfuRateServices
	}
	return IfuRateGoods
}

var defaultDocumentPrefixes = map[InvoiceType]string{
	InvoiceTypeInvoice:      "FAC",
	InvoiceTypeQuote:        "DEV",
	InvoiceTypeCreditNote:   "AVO",
	InvoiceTypeProForma:     "PRO",
	InvoiceTypeDeliveryNote: "BL",
	InvoiceTypeSaleOrder:    "BC",
}

// DefaultDocumentPrefix returns the conventional French abbreviation used
// when a business has not configured its own prefix for a document type.
func DefaultDocumentPrefix(docType InvoiceType) string {
	if p, ok := defaultDocumentPrefixes[docType]; ok {
		return p
	}
	return "DOC"
}
