package models

import (
	"context"
	"time"

	"github.com/dzfacture/facture_backend/config"
	"github.com/dzfacture/facture_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Payment struct {
	ID          int             `gorm:"primaryKey" json:"id"`
	BusinessId  string          `gorm:"index;size:36;not null" json:"business_id"`
	InvoiceId   int             `gorm:"index;not null" json:"invoice_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2)" json:"amount"`
	PaymentDate time.Time       `gorm:"not null" json:"payment_date"`
	Method      PaymentMethod   `gorm:"size:20" json:"method"`
	Reference   string          `gorm:"size:100" json:"reference"`
	Notes       string          `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewPayment struct {
	InvoiceId   int             `json:"invoice_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	PaymentDate time.Time       `json:"payment_date" binding:"required"`
	Method      PaymentMethod   `json:"method"`
	Reference   string          `json:"reference"`
	Notes       string          `json:"notes"`
}

// paymentStatusFor derives the invoice status from how much has been paid.
// Fully paid allows a small epsilon so a rounding cent never strands an
// invoice in Partial. With nothing paid the status falls back to Issued, or
// Overdue when the due date has passed.
func paymentStatusFor(invoice *Invoice, amountPaid decimal.Decimal, now time.Time) InvoiceStatus {
	if amountPaid.GreaterThanOrEqual(invoice.TotalTtc.Sub(PaidAmountEpsilon)) && amountPaid.IsPositive() {
		return InvoiceStatusPaid
	}
	if amountPaid.IsPositive() {
		return InvoiceStatusPartial
	}
	if invoice.DueDate != nil && now.After(*invoice.DueDate) {
		return InvoiceStatusOverdue
	}
	return InvoiceStatusIssued
}

func applyPaymentTotals(ctx context.Context, tx *gorm.DB, invoice *Invoice, now time.Time) error {
	var payments []Payment
	if err := tx.WithContext(ctx).Where("invoice_id = ?", invoice.ID).Find(&payments).Error; err != nil {
		return err
	}
	amountPaid := decimal.Zero
	for _, p := range payments {
		amountPaid = amountPaid.Add(p.Amount)
	}
	status := paymentStatusFor(invoice, amountPaid, now)
	if err := tx.WithContext(ctx).Model(&Invoice{}).Where("id = ?", invoice.ID).Updates(map[string]interface{}{
		"amount_paid": amountPaid,
		"status":      status,
	}).Error; err != nil {
		return err
	}
	invoice.AmountPaid = amountPaid
	invoice.Status = status
	return nil
}

func RecordPayment(ctx context.Context, input *NewPayment) (*Invoice, error) {
	db := config.GetDB()

	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}

	invoice, err := utils.FetchModel[Invoice](ctx, businessId, input.InvoiceId)
	if err != nil {
		return nil, err
	}
	if invoice.Status == InvoiceStatusDraft || invoice.Status == InvoiceStatusCancelled {
		return nil, utils.NewValidationError("status", "payments can only be recorded on issued documents")
	}
	if !input.Amount.IsPositive() {
		return nil, utils.NewValidationError("amount", "payment amount must be positive")
	}
	if input.Method != "" && !input.Method.Valid() {
		return nil, utils.NewValidationError("method", "unknown payment method")
	}
	if err := validatePeriodLock(ctx, businessId, input.PaymentDate); err != nil {
		return nil, err
	}
	before := *invoice

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	payment := Payment{
		BusinessId:  businessId,
		InvoiceId:   invoice.ID,
		Amount:      input.Amount,
		PaymentDate: input.PaymentDate,
		Method:      input.Method,
		Reference:   input.Reference,
		Notes:       input.Notes,
	}
	if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, err
	}

	if err := applyPaymentTotals(ctx, tx, invoice, time.Now()); err != nil {
		return nil, err
	}

	recordHistory(tx.WithContext(ctx), "create", payment.ID, "payments", before, invoice, "payment recorded on "+invoice.DocumentNumber)

	if err := PublishEvent(ctx, tx, businessId, EventPaymentRecorded, invoice.ID, "invoices", invoice); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return invoice, nil
}

// MarkInvoicePaid records a single balancing payment for whatever remains
// outstanding, dated now.
func MarkInvoicePaid(ctx context.Context, invoiceId int, method PaymentMethod) (*Invoice, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	invoice, err := utils.FetchModel[Invoice](ctx, businessId, invoiceId)
	if err != nil {
		return nil, err
	}
	remaining := invoice.TotalTtc.Sub(invoice.AmountPaid)
	if !remaining.IsPositive() {
		return invoice, nil
	}
	if method == "" {
		method = invoice.PaymentMethod
	}
	return RecordPayment(ctx, &NewPayment{
		InvoiceId:   invoiceId,
		Amount:      remaining,
		PaymentDate: time.Now(),
		Method:      method,
	})
}

// MarkInvoiceUnpaid removes every payment on the invoice and reverts the
// status. Each payment date is checked against period closures first, a
// filed month's cash position must not silently change.
func MarkInvoiceUnpaid(ctx context.Context, invoiceId int) (*Invoice, error) {
	db := config.GetDB()

	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}

	invoice, err := utils.FetchModel[Invoice](ctx, businessId, invoiceId, "Payments")
	if err != nil {
		return nil, err
	}
	for _, p := range invoice.Payments {
		if err := validatePeriodLock(ctx, businessId, p.PaymentDate); err != nil {
			return nil, err
		}
	}
	before := *invoice

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.WithContext(ctx).Where("invoice_id = ?", invoice.ID).Delete(&Payment{}).Error; err != nil {
		return nil, err
	}
	invoice.Payments = nil

	if err := applyPaymentTotals(ctx, tx, invoice, time.Now()); err != nil {
		return nil, err
	}

	recordHistory(tx.WithContext(ctx), "update", invoice.ID, "invoices", before, invoice, "payments removed from "+invoice.DocumentNumber)

	if err := PublishEvent(ctx, tx, businessId, EventInvoiceUnpaid, invoice.ID, "invoices", invoice); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return invoice, nil
}
