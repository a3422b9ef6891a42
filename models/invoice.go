package models

import (
	"context"
	"errors"
	"time"

	"github.com/dzfacture/facture_backend/config"
	"github.com/dzfacture/facture_backend/utils"
	"github.com/shopspring/decimal"
)

type Invoice struct {
	ID              int             `gorm:"primaryKey" json:"id"`
	BusinessId      string          `gorm:"index;size:36;not null" json:"business_id"`
	CustomerId      int             `gorm:"index;not null" json:"customer_id"`
	Customer        *Customer       `json:"customer"`
	Type            InvoiceType     `gorm:"size:20;not null" json:"type"`
	Status          InvoiceStatus   `gorm:"size:20;not null;index" json:"status"`
	SequenceNo      int             `json:"sequence_no"`
	SequenceYear    int             `json:"sequence_year"`
	DocumentNumber  string          `gorm:"size:50;index;not null" json:"document_number"`
	IssueDate       time.Time       `gorm:"index;not null" json:"issue_date"`
	DueDate         *time.Time      `json:"due_date"`
	PaymentMethod   PaymentMethod   `gorm:"size:20;not null" json:"payment_method"`
	ZeroRateReason  ZeroRateReason  `gorm:"size:20" json:"zero_rate_reason"`
	Language        string          `gorm:"size:5;default:fr" json:"language"`
	Notes           string          `gorm:"type:text" json:"notes"`
	SubtotalHt      decimal.Decimal `gorm:"type:decimal(20,2)" json:"subtotal_ht"`
	TotalTva        decimal.Decimal `gorm:"type:decimal(20,2)" json:"total_tva"`
	StampDutyAmount decimal.Decimal `gorm:"type:decimal(20,2)" json:"stamp_duty_amount"`
	TotalTtc        decimal.Decimal `gorm:"type:decimal(20,2)" json:"total_ttc"`
	AmountPaid      decimal.Decimal `gorm:"type:decimal(20,2)" json:"amount_paid"`
	Items           []InvoiceItem   `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	Payments        []Payment       `gorm:"constraint:OnDelete:CASCADE" json:"payments"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type InvoiceItem struct {
	ID             int             `gorm:"primaryKey" json:"id"`
	InvoiceId      int             `gorm:"index;not null" json:"invoice_id"`
	Name           string          `gorm:"size:255;not null" json:"name"`
	Description    string          `gorm:"type:text" json:"description"`
	Kind           ItemKind        `gorm:"size:10;not null;default:Goods" json:"kind"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,4)" json:"quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(20,4)" json:"unit_price"`
	DiscountRate   decimal.Decimal `gorm:"type:decimal(5,2)" json:"discount_rate"`
	VatRate        decimal.Decimal `gorm:"type:decimal(5,2)" json:"vat_rate"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(20,2)" json:"discount_amount"`
	TotalHt        decimal.Decimal `gorm:"type:decimal(20,2)" json:"total_ht"`
	VatAmount      decimal.Decimal `gorm:"type:decimal(20,2)" json:"vat_amount"`
	TotalTtc       decimal.Decimal `gorm:"type:decimal(20,2)" json:"total_ttc"`
}

type NewInvoice struct {
	CustomerId     int              `json:"customer_id" binding:"required"`
	Type           InvoiceType      `json:"type" binding:"required"`
	Status         InvoiceStatus    `json:"status"`
	DocumentNumber string           `json:"document_number"`
	IssueDate      time.Time        `json:"issue_date" binding:"required"`
	DueDate        *time.Time       `json:"due_date"`
	PaymentMethod  PaymentMethod    `json:"payment_method" binding:"required"`
	ZeroRateReason ZeroRateReason   `json:"zero_rate_reason"`
	Language       string           `json:"language"`
	Notes          string           `json:"notes"`
	Items          []NewInvoiceItem `json:"items" binding:"required,dive"`
}

type NewInvoiceItem struct {
	Name         string          `json:"name" binding:"required"`
	Description  string          `json:"description"`
	Kind         ItemKind        `json:"kind"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	VatRate      decimal.Decimal `json:"vat_rate"`
}

var oneHundred = decimal.NewFromInt(100)

func (input *NewInvoice) validate(ctx context.Context, businessId string) error {
	if !input.Type.Valid() {
		return utils.NewValidationError("type", "unknown document type")
	}
	if !input.PaymentMethod.Valid() {
		return utils.NewValidationError("payment_method", "unknown payment method")
	}
	if input.Status != "" && input.Status != InvoiceStatusDraft && input.Status != InvoiceStatusIssued {
		return utils.NewValidationError("status", "new documents start as Draft or Issued")
	}
	if input.ZeroRateReason != "" &&
		input.ZeroRateReason != ZeroRateReasonExport && input.ZeroRateReason != ZeroRateReasonExempt {
		return utils.NewValidationError("zero_rate_reason", "unknown zero rate reason")
	}
	if len(input.Items) == 0 {
		return utils.NewValidationError("items", "at least one line is required")
	}
	for _, item := range input.Items {
		if item.Kind != "" && !item.Kind.Valid() {
			return utils.NewValidationError("items", "unknown item kind")
		}
		if item.Quantity.IsNegative() || item.UnitPrice.IsNegative() {
			return utils.NewValidationError("items", "quantity and unit price must not be negative")
		}
		if item.DiscountRate.IsNegative() || item.DiscountRate.GreaterThan(oneHundred) {
			return utils.NewValidationError("items", "discount rate must be within [0, 100]")
		}
		if item.VatRate.IsNegative() || item.VatRate.GreaterThan(oneHundred) {
			return utils.NewValidationError("items", "vat rate must be within [0, 100]")
		}
	}
	return utils.ValidateResourceId[Customer](ctx, businessId, input.CustomerId)
}

// CheckPeriodLock satisfies utils.ModelChangeLocker so generic fetch-for-change
// rejects edits whose issue date sits inside a closed period.
func (inv Invoice) CheckPeriodLock(ctx context.Context) error {
	return validatePeriodLock(ctx, inv.BusinessId, inv.IssueDate)
}

// computeInvoiceTotals rebuilds the full item set and the invoice aggregates.
// Line amounts are rounded when persisted; the invoice totals are accumulated
// at full precision and rounded once, so a many-line invoice cannot drift by
// cents from the sum of its parts. The server decides the effective VAT rate:
// non-VAT-subject regimes get 0 on every line no matter what the client sent.
func computeInvoiceTotals(business *Business, input *NewInvoice) ([]InvoiceItem, decimal.Decimal, decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	var items []InvoiceItem
	var exactHt, exactVat decimal.Decimal

	for _, line := range input.Items {
		vatRate := line.VatRate
		if !business.IsVatSubject() {
			vatRate = decimal.Zero
		}
		kind := line.Kind
		if kind == "" {
			kind = ItemKindGoods
		}
		amounts := utils.CalculateLineItem(line.Quantity, line.UnitPrice, line.DiscountRate, vatRate)
		items = append(items, InvoiceItem{
			Name:           line.Name,
			Description:    line.Description,
			Kind:           kind,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPrice,
			DiscountRate:   line.DiscountRate,
			VatRate:        vatRate,
			DiscountAmount: amounts.DiscountAmount,
			TotalHt:        amounts.TotalHt,
			VatAmount:      amounts.VatAmount,
			TotalTtc:       amounts.TotalTtc,
		})
		exactHt = exactHt.Add(amounts.ExactHt)
		exactVat = exactVat.Add(amounts.ExactVat)
	}

	subtotalHt := utils.RoundMoney(exactHt)
	totalTva := utils.RoundMoney(exactVat)

	stampDuty := decimal.Zero
	if input.PaymentMethod == PaymentMethodCash {
		stampDuty = utils.CalculateStampDuty(subtotalHt.Add(totalTva), utils.DefaultStampDutyConfig())
	}

	totalTtc := subtotalHt.Add(totalTva).Add(stampDuty)
	return items, subtotalHt, totalTva, stampDuty, totalTtc
}

func CreateInvoice(ctx context.Context, input *NewInvoice) (*Invoice, error) {
	db := config.GetDB()

	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return nil, err
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}
	if err := validatePeriodLock(ctx, businessId, input.IssueDate); err != nil {
		return nil, err
	}

	items, subtotalHt, totalTva, stampDuty, totalTtc := computeInvoiceTotals(business, input)

	zeroReason := input.ZeroRateReason
	if zeroReason == "" {
		zeroReason = ZeroRateReasonExempt
	}
	language := input.Language
	if language == "" {
		language = "fr"
	}

	// The counter read-modify-write must not interleave across concurrent
	// creates for the same business.
	unlock, err := utils.LockBusiness(ctx, businessId, "document-counter")
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	issueLocal, err := utils.ConvertToDate(input.IssueDate, business.Timezone)
	if err != nil {
		return nil, err
	}

	// The allocation year is stored on the invoice: a later edit may move
	// the issue date across a year boundary, but the number stays in the
	// series it was drawn from.
	sequenceNo := 0
	sequenceYear := 0
	documentNumber := input.DocumentNumber
	if documentNumber == "" {
		sequenceYear = issueLocal.Year()
		sequenceNo, documentNumber, err = nextDocumentNumber(ctx, tx, businessId, input.Type, sequenceYear)
		if err != nil {
			return nil, err
		}
	} else if err := utils.ValidateUnique[Invoice](ctx, businessId, "document_number", documentNumber, 0); err != nil {
		return nil, err
	}

	invoice := Invoice{
		BusinessId:      businessId,
		CustomerId:      input.CustomerId,
		Type:            input.Type,
		Status:          InvoiceStatusDraft,
		SequenceNo:      sequenceNo,
		SequenceYear:    sequenceYear,
		DocumentNumber:  documentNumber,
		IssueDate:       input.IssueDate,
		DueDate:         input.DueDate,
		PaymentMethod:   input.PaymentMethod,
		ZeroRateReason:  zeroReason,
		Language:        language,
		Notes:           input.Notes,
		SubtotalHt:      subtotalHt,
		TotalTva:        totalTva,
		StampDutyAmount: stampDuty,
		TotalTtc:        totalTtc,
		AmountPaid:      decimal.Zero,
		Items:           items,
	}

	if err := tx.WithContext(ctx).Create(&invoice).Error; err != nil {
		return nil, err
	}

	// Direct issue goes through the same Draft -> Issued transition as the
	// standalone operation so reminders are scheduled exactly once.
	if input.Status == InvoiceStatusIssued {
		if err := tx.WithContext(ctx).Model(&invoice).Update("status", InvoiceStatusIssued).Error; err != nil {
			return nil, err
		}
		invoice.Status = InvoiceStatusIssued
		if err := scheduleDefaultReminders(tx.WithContext(ctx), &invoice); err != nil {
			return nil, err
		}
	}

	recordHistory(tx.WithContext(ctx), "create", invoice.ID, "invoices", nil, invoice, "created "+string(invoice.Type)+" "+invoice.DocumentNumber)

	if err := PublishEvent(ctx, tx, businessId, EventInvoiceCreated, invoice.ID, "invoices", invoice); err != nil {
		return nil, err
	}
	if invoice.Status == InvoiceStatusIssued {
		if err := PublishEvent(ctx, tx, businessId, EventInvoiceIssued, invoice.ID, "invoices", invoice); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// cosmeticChangeOnly reports whether the update touches nothing beyond the
// display language and notes. Paid and cancelled documents accept only such
// edits.
func cosmeticChangeOnly(invoice *Invoice, input *NewInvoice) bool {
	if input.Items != nil {
		return false
	}
	if input.CustomerId != invoice.CustomerId || input.Type != invoice.Type {
		return false
	}
	if !input.IssueDate.Equal(invoice.IssueDate) {
		return false
	}
	if input.PaymentMethod != invoice.PaymentMethod {
		return false
	}
	if input.DocumentNumber != "" && input.DocumentNumber != invoice.DocumentNumber {
		return false
	}
	return true
}

func UpdateInvoice(ctx context.Context, invoiceId int, input *NewInvoice) (*Invoice, error) {
	db := config.GetDB()

	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return nil, err
	}

	invoice, err := utils.FetchModel[Invoice](ctx, businessId, invoiceId, "Items", "Payments")
	if err != nil {
		return nil, err
	}
	before := *invoice

	if invoice.Status.IsTerminal() {
		if !cosmeticChangeOnly(invoice, input) {
			return nil, utils.ErrorInvoiceImmutable
		}
		tx := db.Begin()
		defer func() { _ = tx.Rollback().Error }()
		updates := map[string]interface{}{}
		if input.Language != "" {
			updates["language"] = input.Language
			invoice.Language = input.Language
		}
		if input.Notes != invoice.Notes {
			updates["notes"] = input.Notes
			invoice.Notes = input.Notes
		}
		if len(updates) > 0 {
			if err := tx.WithContext(ctx).Model(&Invoice{}).Where("id = ?", invoice.ID).Updates(updates).Error; err != nil {
				return nil, err
			}
			recordHistory(tx.WithContext(ctx), "update", invoice.ID, "invoices", before, invoice, "cosmetic edit of "+invoice.DocumentNumber)
		}
		if err := tx.Commit().Error; err != nil {
			return nil, err
		}
		return invoice, nil
	}

	// A header-only edit keeps the stored lines; totals are still recomputed
	// because the payment method can move stamp duty on or off.
	if input.Items == nil {
		for _, it := range invoice.Items {
			input.Items = append(input.Items, NewInvoiceItem{
				Name:         it.Name,
				Description:  it.Description,
				Kind:         it.Kind,
				Quantity:     it.Quantity,
				UnitPrice:    it.UnitPrice,
				DiscountRate: it.DiscountRate,
				VatRate:      it.VatRate,
			})
		}
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}
	// Both the stored issue date and the incoming one must be outside closed
	// periods, otherwise an edit could move a document out of a filed month.
	if err := validatePeriodLock(ctx, businessId, invoice.IssueDate); err != nil {
		return nil, err
	}
	if err := validatePeriodLock(ctx, businessId, input.IssueDate); err != nil {
		return nil, err
	}

	if input.DocumentNumber != "" && input.DocumentNumber != invoice.DocumentNumber {
		if err := utils.ValidateUnique[Invoice](ctx, businessId, "document_number", input.DocumentNumber, invoice.ID); err != nil {
			return nil, err
		}
	}

	items, subtotalHt, totalTva, stampDuty, totalTtc := computeInvoiceTotals(business, input)

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	// Item edits replace the whole set: delete-all, recompute, insert-all.
	if err := tx.WithContext(ctx).Where("invoice_id = ?", invoice.ID).Delete(&InvoiceItem{}).Error; err != nil {
		return nil, err
	}
	for i := range items {
		items[i].InvoiceId = invoice.ID
	}
	if len(items) > 0 {
		if err := tx.WithContext(ctx).Create(&items).Error; err != nil {
			return nil, err
		}
	}

	invoice.CustomerId = input.CustomerId
	invoice.Type = input.Type
	invoice.IssueDate = input.IssueDate
	invoice.DueDate = input.DueDate
	invoice.PaymentMethod = input.PaymentMethod
	if input.ZeroRateReason != "" {
		invoice.ZeroRateReason = input.ZeroRateReason
	}
	if input.Language != "" {
		invoice.Language = input.Language
	}
	invoice.Notes = input.Notes
	if input.DocumentNumber != "" {
		invoice.DocumentNumber = input.DocumentNumber
	}
	invoice.SubtotalHt = subtotalHt
	invoice.TotalTva = totalTva
	invoice.StampDutyAmount = stampDuty
	invoice.TotalTtc = totalTtc
	invoice.Items = items

	if err := tx.WithContext(ctx).Model(&Invoice{}).Where("id = ?", invoice.ID).Updates(map[string]interface{}{
		"customer_id":       invoice.CustomerId,
		"type":              invoice.Type,
		"issue_date":        invoice.IssueDate,
		"due_date":          invoice.DueDate,
		"payment_method":    invoice.PaymentMethod,
		"zero_rate_reason":  invoice.ZeroRateReason,
		"language":          invoice.Language,
		"notes":             invoice.Notes,
		"document_number":   invoice.DocumentNumber,
		"subtotal_ht":       invoice.SubtotalHt,
		"total_tva":         invoice.TotalTva,
		"stamp_duty_amount": invoice.StampDutyAmount,
		"total_ttc":         invoice.TotalTtc,
	}).Error; err != nil {
		return nil, err
	}

	// A new total changes what counts as settled, so non-draft documents get
	// their payment status re-derived. Shrinking the total below what was
	// already collected settles the document.
	if invoice.Status != InvoiceStatusDraft {
		if err := applyPaymentTotals(ctx, tx, invoice, time.Now()); err != nil {
			return nil, err
		}
	}

	recordHistory(tx.WithContext(ctx), "update", invoice.ID, "invoices", before, invoice, "updated "+invoice.DocumentNumber)

	if err := PublishEvent(ctx, tx, businessId, EventInvoiceUpdated, invoice.ID, "invoices", invoice); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return invoice, nil
}

func DeleteInvoice(ctx context.Context, id int) (*Invoice, error) {
	db := config.GetDB()

	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}

	invoice, err := utils.FetchModelForChange[Invoice](ctx, businessId, id, "Items", "Payments")
	if err != nil {
		return nil, err
	}

	if invoice.Status == InvoiceStatusPaid || invoice.Status == InvoiceStatusPartial || len(invoice.Payments) > 0 {
		return nil, utils.NewValidationError("status", "document with recorded payments cannot be deleted")
	}

	unlock, err := utils.LockBusiness(ctx, businessId, "document-counter")
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.WithContext(ctx).Where("invoice_id = ?", invoice.ID).Delete(&InvoiceItem{}).Error; err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("invoice_id = ?", invoice.ID).Delete(&PaymentReminder{}).Error; err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(&Invoice{}, invoice.ID).Error; err != nil {
		return nil, err
	}

	// Only the highest sequence gives its number back, in the year the
	// number was allocated. Deleting from the middle leaves a permanent
	// gap, issued numbering never shifts.
	if invoice.SequenceNo > 0 {
		if err := releaseDocumentNumber(tx, businessId, invoice.Type, invoice.SequenceYear, invoice.SequenceNo); err != nil {
			return nil, err
		}
	}

	recordHistory(tx.WithContext(ctx), "delete", invoice.ID, "invoices", invoice, nil, "deleted "+invoice.DocumentNumber)

	if err := PublishEvent(ctx, tx, businessId, EventInvoiceDeleted, invoice.ID, "invoices", invoice); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return invoice, nil
}

func IssueInvoice(ctx context.Context, id int) (*Invoice, error) {
	db := config.GetDB()

	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}

	invoice, err := utils.FetchModelForChange[Invoice](ctx, businessId, id, "Items")
	if err != nil {
		return nil, err
	}
	if invoice.Status != InvoiceStatusDraft {
		return nil, errors.New("only draft documents can be issued")
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

	if err := tx.WithContext(ctx).Model(&Invoice{}).Where("id = ?", invoice.ID).
		Update("status", InvoiceStatusIssued).Error; err != nil {
		return nil, err
	}
	invoice.Status = InvoiceStatusIssued

	if err := scheduleDefaultReminders(tx.WithContext(ctx), invoice); err != nil {
		return nil, err
	}

	recordHistory(tx.WithContext(ctx), "update", invoice.ID, "invoices", before, invoice, "issued "+invoice.DocumentNumber)

	if err := PublishEvent(ctx, tx, businessId, EventInvoiceIssued, invoice.ID, "invoices", invoice); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return invoice, nil
}

// CancelInvoice voids a document that is not yet settled. The number stays
// burned; cancellation never touches the counter.
func CancelInvoice(ctx context.Context, id int) (*Invoice, error) {
	db := config.GetDB()

	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}

	invoice, err := utils.FetchModelForChange[Invoice](ctx, businessId, id, "Items")
	if err != nil {
		return nil, err
	}
	if invoice.Status.IsTerminal() {
		return nil, utils.ErrorInvoiceImmutable
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

	if err := tx.WithContext(ctx).Model(&Invoice{}).Where("id = ?", invoice.ID).
		Update("status", InvoiceStatusCancelled).Error; err != nil {
		return nil, err
	}
	invoice.Status = InvoiceStatusCancelled

	if err := tx.WithContext(ctx).
		Where("invoice_id = ? AND status = ?", invoice.ID, ReminderStatusPending).
		Delete(&PaymentReminder{}).Error; err != nil {
		return nil, err
	}

	recordHistory(tx.WithContext(ctx), "update", invoice.ID, "invoices", before, invoice, "cancelled "+invoice.DocumentNumber)

	if err := PublishEvent(ctx, tx, businessId, EventInvoiceCancelled, invoice.ID, "invoices", invoice); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return invoice, nil
}

func GetInvoice(ctx context.Context, id int) (*Invoice, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[Invoice](ctx, businessId, id, "Items", "Payments", "Customer")
}

func GetInvoicesAll(ctx context.Context) ([]*Invoice, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchAllModels[Invoice](ctx, businessId, "Items")
}
