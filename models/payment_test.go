package models

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func issuedInvoice(t *testing.T, ctx context.Context, customer *Customer, due *time.Time) *Invoice {
	t.Helper()
	return mustCreateInvoice(t, ctx, &NewInvoice{
		CustomerId:    customer.ID,
		Type:          InvoiceTypeInvoice,
		Status:        InvoiceStatusIssued,
		IssueDate:     testDate(2026, 4, 1),
		DueDate:       due,
		PaymentMethod: PaymentMethodBankTransfer,
		Items:         []NewInvoiceItem{standardLine(1, 1000, 19)}, // TTC 1190
	})
}

func TestRecordPaymentPartialThenPaid(t *testing.T) {
	ctx, _, customer := setupTest(t)
	invoice := issuedInvoice(t, ctx, customer, nil)

	partial, err := RecordPayment(ctx, &NewPayment{
		InvoiceId:   invoice.ID,
		Amount:      decimal.NewFromInt(500),
		PaymentDate: testDate(2026, 4, 5),
	})
	if err != nil {
		t.Fatalf("recording partial payment: %v", err)
	}
	if partial.Status != InvoiceStatusPartial {
		t.Errorf("status = %s, want Partial", partial.Status)
	}
	if !partial.AmountPaid.Equal(decimal.NewFromInt(500)) {
		t.Errorf("amount paid = %s, want 500", partial.AmountPaid)
	}

	paid, err := RecordPayment(ctx, &NewPayment{
		InvoiceId:   invoice.ID,
		Amount:      decimal.NewFromInt(690),
		PaymentDate: testDate(2026, 4, 10),
	})
	if err != nil {
		t.Fatalf("recording final payment: %v", err)
	}
	if paid.Status != InvoiceStatusPaid {
		t.Errorf("status = %s, want Paid", paid.Status)
	}
}

func TestRecordPaymentWithinEpsilonMarksPaid(t *testing.T) {
	ctx, _, customer := setupTest(t)
	invoice := issuedInvoice(t, ctx, customer, nil)

	// One centime short still counts as settled.
	result, err := RecordPayment(ctx, &NewPayment{
		InvoiceId:   invoice.ID,
		Amount:      decimal.RequireFromString("1189.99"),
		PaymentDate: testDate(2026, 4, 5),
	})
	if err != nil {
		t.Fatalf("recording payment: %v", err)
	}
	if result.Status != InvoiceStatusPaid {
		t.Errorf("status = %s, want Paid within rounding tolerance", result.Status)
	}
}

func TestRecordPaymentRejectedOnDraft(t *testing.T) {
	ctx, _, customer := setupTest(t)
	draft := mustCreateInvoice(t, ctx, &NewInvoice{
		CustomerId:    customer.ID,
		Type:          InvoiceTypeInvoice,
		IssueDate:     testDate(2026, 4, 1),
		PaymentMethod: PaymentMethodBankTransfer,
		Items:         []NewInvoiceItem{standardLine(1, 100, 19)},
	})

	if _, err := RecordPayment(ctx, &NewPayment{
		InvoiceId:   draft.ID,
		Amount:      decimal.NewFromInt(10),
		PaymentDate: testDate(2026, 4, 2),
	}); err == nil {
		t.Error("payment on draft accepted")
	}
}

func TestRecordPaymentRejectsNonPositiveAmount(t *testing.T) {
	ctx, _, customer := setupTest(t)
	invoice := issuedInvoice(t, ctx, customer, nil)

	if _, err := RecordPayment(ctx, &NewPayment{
		InvoiceId:   invoice.ID,
		Amount:      decimal.NewFromInt(-5),
		PaymentDate: testDate(2026, 4, 2),
	}); err == nil {
		t.Error("negative payment accepted")
	}
}

func TestMarkInvoicePaidBalancesRemainder(t *testing.T) {
	ctx, _, customer := setupTest(t)
	invoice := issuedInvoice(t, ctx, customer, nil)

	if _, err := RecordPayment(ctx, &NewPayment{
		InvoiceId:   invoice.ID,
		Amount:      decimal.NewFromInt(200),
		PaymentDate: testDate(2026, 4, 5),
	}); err != nil {
		t.Fatalf("recording partial payment: %v", err)
	}

	paid, err := MarkInvoicePaid(ctx, invoice.ID, "")
	if err != nil {
		t.Fatalf("marking paid: %v", err)
	}
	if paid.Status != InvoiceStatusPaid {
		t.Errorf("status = %s, want Paid", paid.Status)
	}
	if !paid.AmountPaid.Equal(paid.TotalTtc) {
		t.Errorf("amount paid = %s, want %s", paid.AmountPaid, paid.TotalTtc)
	}

	// Already settled, a second call is a no-op.
	if _, err := MarkInvoicePaid(ctx, invoice.ID, ""); err != nil {
		t.Fatalf("second mark paid: %v", err)
	}
	reloaded, err := GetInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("fetching invoice: %v", err)
	}
	if len(reloaded.Payments) != 2 {
		t.Errorf("payment count = %d, want 2", len(reloaded.Payments))
	}
}

func TestMarkInvoiceUnpaidRemovesPayments(t *testing.T) {
	ctx, _, customer := setupTest(t)
	invoice := issuedInvoice(t, ctx, customer, nil)

	if _, err := MarkInvoicePaid(ctx, invoice.ID, ""); err != nil {
		t.Fatalf("marking paid: %v", err)
	}

	reverted, err := MarkInvoiceUnpaid(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("marking unpaid: %v", err)
	}
	if reverted.Status != InvoiceStatusIssued {
		t.Errorf("status = %s, want Issued", reverted.Status)
	}
	if !reverted.AmountPaid.IsZero() {
		t.Errorf("amount paid = %s, want 0", reverted.AmountPaid)
	}
	if len(reverted.Payments) != 0 {
		t.Errorf("payment count = %d, want 0", len(reverted.Payments))
	}
}

func TestUnpaidPastDueBecomesOverdue(t *testing.T) {
	ctx, _, customer := setupTest(t)
	due := testDate(2026, 4, 15) // well in the past relative to payment below
	invoice := issuedInvoice(t, ctx, customer, &due)

	if _, err := RecordPayment(ctx, &NewPayment{
		InvoiceId:   invoice.ID,
		Amount:      decimal.NewFromInt(100),
		PaymentDate: testDate(2026, 5, 1),
	}); err != nil {
		t.Fatalf("recording payment: %v", err)
	}

	reverted, err := MarkInvoiceUnpaid(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("marking unpaid: %v", err)
	}
	if reverted.Status != InvoiceStatusOverdue {
		t.Errorf("status = %s, want Overdue past due date", reverted.Status)
	}
}

func TestUpdateInvoiceReducedTotalSettlesPartial(t *testing.T) {
	ctx, _, customer := setupTest(t)
	invoice := issuedInvoice(t, ctx, customer, nil)

	if _, err := RecordPayment(ctx, &NewPayment{
		InvoiceId:   invoice.ID,
		Amount:      decimal.NewFromInt(500),
		PaymentDate: testDate(2026, 4, 5),
	}); err != nil {
		t.Fatalf("recording payment: %v", err)
	}

	// Replacing the lines drops the total below what was already collected,
	// which settles the document.
	updated, err := UpdateInvoice(ctx, invoice.ID, &NewInvoice{
		CustomerId:    customer.ID,
		Type:          InvoiceTypeInvoice,
		IssueDate:     testDate(2026, 4, 1),
		PaymentMethod: PaymentMethodBankTransfer,
		Items:         []NewInvoiceItem{standardLine(1, 300, 19)}, // TTC 357
	})
	if err != nil {
		t.Fatalf("updating invoice: %v", err)
	}
	if updated.Status != InvoiceStatusPaid {
		t.Errorf("status = %s, want Paid", updated.Status)
	}
	if !updated.AmountPaid.Equal(decimal.NewFromInt(500)) {
		t.Errorf("amount paid = %s, want 500", updated.AmountPaid)
	}
}
