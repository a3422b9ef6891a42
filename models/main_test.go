package models

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dzfacture/facture_backend/config"
	"github.com/dzfacture/facture_backend/utils"
	"github.com/shopspring/decimal"
)

// setupTest opens a fresh in-memory database, migrates the schema and
// creates a real-regime business with one customer. The returned context
// carries the business and user identity the way middleware would set it.
func setupTest(t *testing.T) (context.Context, *Business, *Customer) {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := config.OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	if err := MigrateAll(db); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	ctx := utils.SetUserIdInContext(context.Background(), 1)
	ctx = utils.SetUserNameInContext(ctx, "Tester")

	business, err := CreateBusiness(ctx, &NewBusiness{
		Name:           "SARL Test",
		Type:           BusinessTypeCorporate,
		FiscalRegime:   FiscalRegimeReal,
		MainActivity:   MainActivityTrade,
		Nif:            "000016001234567",
		DefaultVatRate: decimal.NewFromInt(19),
		Timezone:       "UTC",
	})
	if err != nil {
		t.Fatalf("creating business: %v", err)
	}
	ctx = utils.SetBusinessIdInContext(ctx, business.ID.String())

	customer, err := CreateCustomer(ctx, &NewCustomer{Name: "EURL Client"})
	if err != nil {
		t.Fatalf("creating customer: %v", err)
	}

	return ctx, business, customer
}

// setupAutoEntrepreneur swaps in an auto-entrepreneur business on the same
// database.
func setupAutoEntrepreneur(t *testing.T, ctx context.Context) (context.Context, *Business, *Customer) {
	t.Helper()

	business, err := CreateBusiness(ctx, &NewBusiness{
		Name:         "AE Test",
		Type:         BusinessTypeAutoEntrepreneur,
		FiscalRegime: FiscalRegimeAutoEntrepreneur,
		Nif:          "000016007654321",
		Timezone:     "UTC",
	})
	if err != nil {
		t.Fatalf("creating AE business: %v", err)
	}
	aeCtx := utils.SetBusinessIdInContext(ctx, business.ID.String())
	customer, err := CreateCustomer(aeCtx, &NewCustomer{Name: "AE Client"})
	if err != nil {
		t.Fatalf("creating AE customer: %v", err)
	}
	return aeCtx, business, customer
}

func testDate(year int, month int, day int) time.Time {
	return time.Date(year, time.Month(month), day, 12, 0, 0, 0, time.UTC)
}

func mustCreateInvoice(t *testing.T, ctx context.Context, input *NewInvoice) *Invoice {
	t.Helper()
	invoice, err := CreateInvoice(ctx, input)
	if err != nil {
		t.Fatalf("creating invoice: %v", err)
	}
	return invoice
}

func standardLine(qty int64, price int64, vat int64) NewInvoiceItem {
	return NewInvoiceItem{
		Name:      "Article",
		Kind:      ItemKindGoods,
		Quantity:  decimal.NewFromInt(qty),
		UnitPrice: decimal.NewFromInt(price),
		VatRate:   decimal.NewFromInt(vat),
	}
}
