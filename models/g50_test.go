package models

import (
	"context"
	"errors"
	"testing"

	"github.com/dzfacture/facture_backend/utils"
	"github.com/shopspring/decimal"
)

func julyInvoice(t *testing.T, ctx context.Context, customer *Customer, docType InvoiceType, method PaymentMethod, reason ZeroRateReason, items ...NewInvoiceItem) *Invoice {
	t.Helper()
	return mustCreateInvoice(t, ctx, &NewInvoice{
		CustomerId:     customer.ID,
		Type:           docType,
		Status:         InvoiceStatusIssued,
		IssueDate:      testDate(2026, 7, 10),
		PaymentMethod:  method,
		ZeroRateReason: reason,
		Items:          items,
	})
}

func TestG50BucketAggregation(t *testing.T) {
	ctx, _, customer := setupTest(t)

	// 1000 HT at 19 plus 200 HT at 9 on one invoice.
	julyInvoice(t, ctx, customer, InvoiceTypeInvoice, PaymentMethodBankTransfer, "",
		standardLine(1, 1000, 19), standardLine(1, 200, 9))
	// Cash sale contributes stamp duty: 500+95 TTC spans six started hundreds.
	julyInvoice(t, ctx, customer, InvoiceTypeInvoice, PaymentMethodCash, "",
		standardLine(1, 500, 19))
	// Zero-rated turnover splits by declared reason.
	julyInvoice(t, ctx, customer, InvoiceTypeInvoice, PaymentMethodBankTransfer, ZeroRateReasonExport,
		standardLine(1, 300, 0))
	julyInvoice(t, ctx, customer, InvoiceTypeInvoice, PaymentMethodBankTransfer, ZeroRateReasonExempt,
		standardLine(1, 400, 0))
	// Credit note reverses turnover and collected VAT.
	julyInvoice(t, ctx, customer, InvoiceTypeCreditNote, PaymentMethodBankTransfer, "",
		standardLine(1, 100, 19))
	// Drafts and quotes never reach the declaration.
	mustCreateInvoice(t, ctx, &NewInvoice{
		CustomerId:    customer.ID,
		Type:          InvoiceTypeInvoice,
		IssueDate:     testDate(2026, 7, 12),
		PaymentMethod: PaymentMethodBankTransfer,
		Items:         []NewInvoiceItem{standardLine(1, 9999, 19)},
	})
	julyInvoice(t, ctx, customer, InvoiceTypeQuote, PaymentMethodBankTransfer, "",
		standardLine(1, 8888, 19))

	if _, err := CreatePurchaseInvoice(ctx, &NewPurchaseInvoice{
		SupplierName: "Fournisseur SARL",
		PurchaseDate: testDate(2026, 7, 8),
		Items:        []NewPurchaseInvoiceItem{{Name: "Matériel", AmountHt: decimal.NewFromInt(263), VatRate: decimal.NewFromInt(19)}},
	}); err != nil {
		t.Fatalf("creating purchase: %v", err)
	}
	if _, err := AddG50ImportEntry(ctx, &NewG50ImportEntry{
		Year:      2026,
		Month:     7,
		Reference: "D10-2026-0042",
		AmountHt:  decimal.NewFromInt(150),
		VatAmount: decimal.NewFromInt(30),
	}); err != nil {
		t.Fatalf("adding import entry: %v", err)
	}

	decl, err := GetG50(ctx, 2026, 7)
	if err != nil {
		t.Fatalf("computing G50: %v", err)
	}

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"turnover_19", decl.Turnover19, "1400"},         // 1000 + 500 - 100
		{"vat_19", decl.Vat19, "266"},                    // 190 + 95 - 19
		{"turnover_9", decl.Turnover9, "200"},
		{"vat_9", decl.Vat9, "18"},
		{"turnover_export", decl.TurnoverExport, "300"},
		{"turnover_exempt", decl.TurnoverExempt, "400"},
		{"vat_collected_total", decl.VatCollectedTotal, "284"},
		{"vat_deductible_purchases", decl.VatDeductiblePurchases, "49.97"},
		{"vat_deductible_imports", decl.VatDeductibleImports, "30"},
		{"vat_deductible_total", decl.VatDeductibleTotal, "79.97"},
		{"vat_net_before_credit", decl.VatNetBeforeCredit, "204.03"},
		{"vat_payable", decl.VatPayable, "204.03"},
		{"new_credit", decl.NewCredit, "0"},
		{"stamp_duty_collected", decl.StampDutyCollected, "6"},
	}
	for _, c := range checks {
		if !c.got.Equal(decimal.RequireFromString(c.want)) {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
	if decl.InvoiceCount != 5 {
		t.Errorf("invoice count = %d, want 5", decl.InvoiceCount)
	}
	if decl.PurchaseCount != 1 || decl.ImportEntryCount != 1 {
		t.Errorf("purchase/import counts = %d/%d, want 1/1", decl.PurchaseCount, decl.ImportEntryCount)
	}
	if decl.Status == DeclarationStatusFinalized {
		t.Error("live computation marked finalized")
	}
}

func TestG50CreditChain(t *testing.T) {
	ctx, business, customer := setupTest(t)

	// July has only deductible VAT, so the month closes in credit.
	if _, err := CreatePurchaseInvoice(ctx, &NewPurchaseInvoice{
		SupplierName: "Fournisseur SARL",
		PurchaseDate: testDate(2026, 7, 8),
		Items:        []NewPurchaseInvoiceItem{{Name: "Stock", AmountHt: decimal.NewFromInt(1000), VatRate: decimal.NewFromInt(10)}},
	}); err != nil {
		t.Fatalf("creating purchase: %v", err)
	}

	july, err := FinalizeG50(ctx, 2026, 7, nil)
	if err != nil {
		t.Fatalf("finalizing July: %v", err)
	}
	if !july.NewCredit.Equal(decimal.NewFromInt(100)) {
		t.Errorf("July new credit = %s, want 100", july.NewCredit)
	}
	if !july.VatPayable.IsZero() {
		t.Errorf("July payable = %s, want 0", july.VatPayable)
	}

	// The carried credit lands on the business record too.
	reloaded, err := GetBusinessById(ctx, business.ID.String())
	if err != nil {
		t.Fatalf("reloading business: %v", err)
	}
	if !reloaded.VatCreditCarriedForward.Equal(decimal.NewFromInt(100)) {
		t.Errorf("carried credit = %s, want 100", reloaded.VatCreditCarriedForward)
	}

	// August sales absorb the credit before anything becomes payable.
	mustCreateInvoice(t, ctx, &NewInvoice{
		CustomerId:    customer.ID,
		Type:          InvoiceTypeInvoice,
		Status:        InvoiceStatusIssued,
		IssueDate:     testDate(2026, 8, 5),
		PaymentMethod: PaymentMethodBankTransfer,
		Items:         []NewInvoiceItem{standardLine(1, 1000, 19)},
	})

	august, err := GetG50(ctx, 2026, 8)
	if err != nil {
		t.Fatalf("computing August: %v", err)
	}
	if !august.PreviousCredit.Equal(decimal.NewFromInt(100)) {
		t.Errorf("August previous credit = %s, want 100", august.PreviousCredit)
	}
	if !august.VatPayable.Equal(decimal.NewFromInt(90)) {
		t.Errorf("August payable = %s, want 90", august.VatPayable)
	}
}

func TestFinalizeG50Twice(t *testing.T) {
	ctx, _, _ := setupTest(t)

	if _, err := FinalizeG50(ctx, 2026, 7, nil); err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	if _, err := FinalizeG50(ctx, 2026, 7, nil); !errors.Is(err, utils.ErrorDeclarationFinalized) {
		t.Errorf("second finalize: err = %v, want ErrorDeclarationFinalized", err)
	}
}

func TestFinalizedG50IsServedVerbatim(t *testing.T) {
	ctx, _, customer := setupTest(t)

	julyInvoice(t, ctx, customer, InvoiceTypeInvoice, PaymentMethodBankTransfer, "",
		standardLine(1, 1000, 19))

	finalized, err := FinalizeG50(ctx, 2026, 7, &G50ManualFields{
		TapAmount: decimal.NewFromInt(15),
	})
	if err != nil {
		t.Fatalf("finalizing: %v", err)
	}
	if finalized.FinalizedAt == nil {
		t.Fatal("finalized declaration has no timestamp")
	}
	if !finalized.TapAmount.Equal(decimal.NewFromInt(15)) {
		t.Errorf("TAP = %s, want 15", finalized.TapAmount)
	}

	// A late invoice in the same month must not change the filed figures.
	julyInvoice(t, ctx, customer, InvoiceTypeInvoice, PaymentMethodBankTransfer, "",
		standardLine(1, 5000, 19))

	decl, err := GetG50(ctx, 2026, 7)
	if err != nil {
		t.Fatalf("fetching declaration: %v", err)
	}
	if !decl.Turnover19.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("turnover 19 = %s, want the filed 1000", decl.Turnover19)
	}
	if decl.InvoiceCount != 1 {
		t.Errorf("invoice count = %d, want the filed 1", decl.InvoiceCount)
	}
}

func TestImportEntriesLockedAfterFinalize(t *testing.T) {
	ctx, _, _ := setupTest(t)

	entry, err := AddG50ImportEntry(ctx, &NewG50ImportEntry{
		Year: 2026, Month: 7,
		VatAmount: decimal.NewFromInt(25),
	})
	if err != nil {
		t.Fatalf("adding entry: %v", err)
	}
	if _, err := FinalizeG50(ctx, 2026, 7, nil); err != nil {
		t.Fatalf("finalizing: %v", err)
	}

	if _, err := AddG50ImportEntry(ctx, &NewG50ImportEntry{
		Year: 2026, Month: 7,
		VatAmount: decimal.NewFromInt(10),
	}); !errors.Is(err, utils.ErrorDeclarationFinalized) {
		t.Errorf("add after finalize: err = %v, want ErrorDeclarationFinalized", err)
	}
	if _, err := DeleteG50ImportEntry(ctx, entry.ID); !errors.Is(err, utils.ErrorDeclarationFinalized) {
		t.Errorf("delete after finalize: err = %v, want ErrorDeclarationFinalized", err)
	}
}
