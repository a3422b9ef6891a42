package models

import (
	"context"
	"testing"

	"github.com/dzfacture/facture_backend/utils"
	"github.com/shopspring/decimal"
)

func setupFlatRate(t *testing.T, ctx context.Context) (context.Context, *Customer) {
	t.Helper()
	business, err := CreateBusiness(ctx, &NewBusiness{
		Name:         "IFU Test",
		Type:         BusinessTypeIndividual,
		FiscalRegime: FiscalRegimeFlatRate,
		Nif:          "000016009999999",
		Timezone:     "UTC",
	})
	if err != nil {
		t.Fatalf("creating flat-rate business: %v", err)
	}
	frCtx := utils.SetBusinessIdInContext(ctx, business.ID.String())
	customer, err := CreateCustomer(frCtx, &NewCustomer{Name: "IFU Client"})
	if err != nil {
		t.Fatalf("creating customer: %v", err)
	}
	return frCtx, customer
}

func serviceLine(price int64) NewInvoiceItem {
	return NewInvoiceItem{
		Name:      "Prestation",
		Kind:      ItemKindServices,
		Quantity:  decimal.NewFromInt(1),
		UnitPrice: decimal.NewFromInt(price),
	}
}

func TestG12FlatRateProjection(t *testing.T) {
	ctx, _, _ := setupTest(t)
	frCtx, customer := setupFlatRate(t, ctx)

	// 10000 goods and 2000 services realized during the year.
	mustCreateInvoice(t, frCtx, &NewInvoice{
		CustomerId:    customer.ID,
		Type:          InvoiceTypeInvoice,
		Status:        InvoiceStatusIssued,
		IssueDate:     testDate(2026, 2, 10),
		PaymentMethod: PaymentMethodBankTransfer,
		Items:         []NewInvoiceItem{standardLine(1, 10000, 0), serviceLine(2000)},
	})
	// A credit note pulls goods turnover back down.
	mustCreateInvoice(t, frCtx, &NewInvoice{
		CustomerId:    customer.ID,
		Type:          InvoiceTypeCreditNote,
		Status:        InvoiceStatusIssued,
		IssueDate:     testDate(2026, 3, 1),
		PaymentMethod: PaymentMethodBankTransfer,
		Items:         []NewInvoiceItem{standardLine(1, 1000, 0)},
	})

	report, err := GetG12(frCtx, 2026)
	if err != nil {
		t.Fatalf("computing G12: %v", err)
	}
	if !report.TurnoverGoods.Equal(decimal.NewFromInt(9000)) {
		t.Errorf("goods turnover = %s, want 9000", report.TurnoverGoods)
	}
	if !report.TurnoverServices.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("services turnover = %s, want 2000", report.TurnoverServices)
	}
	// 5% of 9000 plus 12% of 2000.
	if !report.ProjectedTax.Equal(decimal.NewFromInt(690)) {
		t.Errorf("projected tax = %s, want 690", report.ProjectedTax)
	}
	// No forecast saved: the whole projection is the adjustment.
	if !report.Adjustment.Equal(decimal.NewFromInt(690)) {
		t.Errorf("adjustment = %s, want 690", report.Adjustment)
	}
}

func TestG12AutoEntrepreneurRate(t *testing.T) {
	ctx, _, _ := setupTest(t)
	aeCtx, _, customer := setupAutoEntrepreneur(t, ctx)

	mustCreateInvoice(t, aeCtx, &NewInvoice{
		CustomerId:    customer.ID,
		Type:          InvoiceTypeInvoice,
		Status:        InvoiceStatusIssued,
		IssueDate:     testDate(2026, 5, 10),
		PaymentMethod: PaymentMethodBankTransfer,
		Items:         []NewInvoiceItem{standardLine(1, 200000, 0)},
	})

	report, err := GetG12(aeCtx, 2026)
	if err != nil {
		t.Fatalf("computing G12: %v", err)
	}
	// 0.5% flat on total turnover regardless of split.
	if !report.ProjectedTax.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("projected tax = %s, want 1000", report.ProjectedTax)
	}
}

func TestG12ForecastAndAdjustment(t *testing.T) {
	ctx, _, _ := setupTest(t)
	frCtx, customer := setupFlatRate(t, ctx)

	forecast, err := SaveG12Forecast(frCtx, &NewG12Forecast{
		Year:             2026,
		TurnoverGoods:    decimal.NewFromInt(8000),
		TurnoverServices: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("saving forecast: %v", err)
	}
	// 5% of 8000 plus 12% of 1000.
	if !forecast.TaxDueInitial.Equal(decimal.NewFromInt(520)) {
		t.Errorf("initial tax = %s, want 520", forecast.TaxDueInitial)
	}

	// Re-filing the same year updates in place.
	updated, err := SaveG12Forecast(frCtx, &NewG12Forecast{
		Year:          2026,
		TurnoverGoods: decimal.NewFromInt(10000),
	})
	if err != nil {
		t.Fatalf("updating forecast: %v", err)
	}
	if updated.ID != forecast.ID {
		t.Errorf("forecast re-created: id %d then %d", forecast.ID, updated.ID)
	}
	if !updated.TaxDueInitial.Equal(decimal.NewFromInt(500)) {
		t.Errorf("updated initial tax = %s, want 500", updated.TaxDueInitial)
	}

	mustCreateInvoice(t, frCtx, &NewInvoice{
		CustomerId:    customer.ID,
		Type:          InvoiceTypeInvoice,
		Status:        InvoiceStatusIssued,
		IssueDate:     testDate(2026, 6, 1),
		PaymentMethod: PaymentMethodBankTransfer,
		Items:         []NewInvoiceItem{standardLine(1, 12000, 0)},
	})

	report, err := GetG12(frCtx, 2026)
	if err != nil {
		t.Fatalf("computing G12: %v", err)
	}
	if !report.TaxDueInitial.Equal(decimal.NewFromInt(500)) {
		t.Errorf("tax due initial = %s, want 500", report.TaxDueInitial)
	}
	// Realized 12000 goods projects 600; 100 remains due.
	if !report.Adjustment.Equal(decimal.NewFromInt(100)) {
		t.Errorf("adjustment = %s, want 100", report.Adjustment)
	}
}

func TestG12RealRegimeInformationalOnly(t *testing.T) {
	ctx, _, customer := setupTest(t)

	mustCreateInvoice(t, ctx, &NewInvoice{
		CustomerId:    customer.ID,
		Type:          InvoiceTypeInvoice,
		Status:        InvoiceStatusIssued,
		IssueDate:     testDate(2026, 2, 1),
		PaymentMethod: PaymentMethodBankTransfer,
		Items:         []NewInvoiceItem{standardLine(1, 5000, 19), serviceLine(1500)},
	})

	report, err := GetG12(ctx, 2026)
	if err != nil {
		t.Fatalf("computing G12: %v", err)
	}
	if !report.TurnoverGoods.Equal(decimal.NewFromInt(5000)) || !report.TurnoverServices.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("split = %s/%s, want 5000/1500", report.TurnoverGoods, report.TurnoverServices)
	}
	if !report.ProjectedTax.IsZero() || !report.Adjustment.IsZero() {
		t.Errorf("real regime projected tax/adjustment = %s/%s, want 0/0", report.ProjectedTax, report.Adjustment)
	}
	if !report.IbsRate.Equal(decimal.NewFromInt(26)) {
		t.Errorf("IBS rate = %s, want 26 for trade", report.IbsRate)
	}

	if _, err := SaveG12Forecast(ctx, &NewG12Forecast{Year: 2026, TurnoverGoods: decimal.NewFromInt(1)}); !utils.IsValidationError(err) {
		t.Errorf("real-regime forecast: err = %v, want validation error", err)
	}
}
