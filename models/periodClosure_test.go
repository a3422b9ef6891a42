package models

import (
	"context"
	"errors"
	"testing"

	"github.com/dzfacture/facture_backend/utils"
	"github.com/shopspring/decimal"
)

func closeMarch(t *testing.T, ctx context.Context) *PeriodClosure {
	t.Helper()
	closure, err := ClosePeriod(ctx, &NewPeriodClosure{
		StartDate: testDate(2026, 3, 1),
		EndDate:   testDate(2026, 3, 31),
		Type:      ClosureTypeMonthly,
	})
	if err != nil {
		t.Fatalf("closing period: %v", err)
	}
	return closure
}

func TestClosedPeriodBlocksInvoiceCreation(t *testing.T) {
	ctx, _, customer := setupTest(t)
	closeMarch(t, ctx)

	_, err := CreateInvoice(ctx, &NewInvoice{
		CustomerId:    customer.ID,
		Type:          InvoiceTypeInvoice,
		IssueDate:     testDate(2026, 3, 15),
		PaymentMethod: PaymentMethodBankTransfer,
		Items:         []NewInvoiceItem{standardLine(1, 100, 19)},
	})
	if !errors.Is(err, utils.ErrorPeriodLocked) {
		t.Errorf("create in closed period: err = %v, want ErrorPeriodLocked", err)
	}

	// Boundary dates are locked inclusively.
	_, err = CreateInvoice(ctx, &NewInvoice{
		CustomerId:    customer.ID,
		Type:          InvoiceTypeInvoice,
		IssueDate:     testDate(2026, 3, 31),
		PaymentMethod: PaymentMethodBankTransfer,
		Items:         []NewInvoiceItem{standardLine(1, 100, 19)},
	})
	if !errors.Is(err, utils.ErrorPeriodLocked) {
		t.Errorf("create on closure end date: err = %v, want ErrorPeriodLocked", err)
	}

	// The day after the closure is open.
	if _, err := CreateInvoice(ctx, &NewInvoice{
		CustomerId:    customer.ID,
		Type:          InvoiceTypeInvoice,
		IssueDate:     testDate(2026, 4, 1),
		PaymentMethod: PaymentMethodBankTransfer,
		Items:         []NewInvoiceItem{standardLine(1, 100, 19)},
	}); err != nil {
		t.Errorf("create after closure: %v", err)
	}
}

func TestClosedPeriodBlocksEditAndDelete(t *testing.T) {
	ctx, _, customer := setupTest(t)

	invoice := mustCreateInvoice(t, ctx, &NewInvoice{
		CustomerId:    customer.ID,
		Type:          InvoiceTypeInvoice,
		IssueDate:     testDate(2026, 3, 15),
		PaymentMethod: PaymentMethodBankTransfer,
		Items:         []NewInvoiceItem{standardLine(1, 100, 19)},
	})
	closeMarch(t, ctx)

	_, err := UpdateInvoice(ctx, invoice.ID, &NewInvoice{
		CustomerId:    customer.ID,
		Type:          InvoiceTypeInvoice,
		IssueDate:     testDate(2026, 3, 15),
		PaymentMethod: PaymentMethodBankTransfer,
		Items:         []NewInvoiceItem{standardLine(2, 100, 19)},
	})
	if !errors.Is(err, utils.ErrorPeriodLocked) {
		t.Errorf("edit in closed period: err = %v, want ErrorPeriodLocked", err)
	}

	if _, err := DeleteInvoice(ctx, invoice.ID); !errors.Is(err, utils.ErrorPeriodLocked) {
		t.Errorf("delete in closed period: err = %v, want ErrorPeriodLocked", err)
	}

	// Moving an open invoice INTO a closed period is equally rejected.
	open := mustCreateInvoice(t, ctx, &NewInvoice{
		CustomerId:    customer.ID,
		Type:          InvoiceTypeInvoice,
		IssueDate:     testDate(2026, 4, 10),
		PaymentMethod: PaymentMethodBankTransfer,
		Items:         []NewInvoiceItem{standardLine(1, 100, 19)},
	})
	_, err = UpdateInvoice(ctx, open.ID, &NewInvoice{
		CustomerId:    customer.ID,
		Type:          InvoiceTypeInvoice,
		IssueDate:     testDate(2026, 3, 20),
		PaymentMethod: PaymentMethodBankTransfer,
		Items:         []NewInvoiceItem{standardLine(1, 100, 19)},
	})
	if !errors.Is(err, utils.ErrorPeriodLocked) {
		t.Errorf("move into closed period: err = %v, want ErrorPeriodLocked", err)
	}
}

func TestClosedPeriodBlocksIssueAndCancel(t *testing.T) {
	ctx, _, customer := setupTest(t)

	draft := mustCreateInvoice(t, ctx, &NewInvoice{
		CustomerId:    customer.ID,
		Type:          InvoiceTypeInvoice,
		IssueDate:     testDate(2026, 3, 12),
		PaymentMethod: PaymentMethodBankTransfer,
		Items:         []NewInvoiceItem{standardLine(1, 100, 19)},
	})
	closeMarch(t, ctx)

	if _, err := IssueInvoice(ctx, draft.ID); !errors.Is(err, utils.ErrorPeriodLocked) {
		t.Errorf("issue in closed period: err = %v, want ErrorPeriodLocked", err)
	}
	if _, err := CancelInvoice(ctx, draft.ID); !errors.Is(err, utils.ErrorPeriodLocked) {
		t.Errorf("cancel in closed period: err = %v, want ErrorPeriodLocked", err)
	}
}

func TestClosedPeriodBlocksPayments(t *testing.T) {
	ctx, _, customer := setupTest(t)

	invoice := mustCreateInvoice(t, ctx, &NewInvoice{
		CustomerId:    customer.ID,
		Type:          InvoiceTypeInvoice,
		Status:        InvoiceStatusIssued,
		IssueDate:     testDate(2026, 2, 10),
		PaymentMethod: PaymentMethodBankTransfer,
		Items:         []NewInvoiceItem{standardLine(1, 100, 19)},
	})
	closeMarch(t, ctx)

	_, err := RecordPayment(ctx, &NewPayment{
		InvoiceId:   invoice.ID,
		Amount:      decimal.NewFromInt(50),
		PaymentDate: testDate(2026, 3, 10),
	})
	if !errors.Is(err, utils.ErrorPeriodLocked) {
		t.Errorf("payment dated in closed period: err = %v, want ErrorPeriodLocked", err)
	}
}

func TestReopenPeriodUnblocks(t *testing.T) {
	ctx, _, customer := setupTest(t)
	closure := closeMarch(t, ctx)

	if _, err := ReopenPeriod(ctx, closure.ID); err != nil {
		t.Fatalf("reopening period: %v", err)
	}

	if _, err := CreateInvoice(ctx, &NewInvoice{
		CustomerId:    customer.ID,
		Type:          InvoiceTypeInvoice,
		IssueDate:     testDate(2026, 3, 15),
		PaymentMethod: PaymentMethodBankTransfer,
		Items:         []NewInvoiceItem{standardLine(1, 100, 19)},
	}); err != nil {
		t.Errorf("create after reopen: %v", err)
	}
}

func TestClosePeriodRejectsInvertedRange(t *testing.T) {
	ctx, _, _ := setupTest(t)

	_, err := ClosePeriod(ctx, &NewPeriodClosure{
		StartDate: testDate(2026, 3, 31),
		EndDate:   testDate(2026, 3, 1),
	})
	if !utils.IsValidationError(err) {
		t.Errorf("inverted range: err = %v, want validation error", err)
	}
}
