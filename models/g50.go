package models

import (
	"context"
	"time"

	"github.com/dzfacture/facture_backend/config"
	"github.com/dzfacture/facture_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// G50Declaration is the monthly VAT return. Only finalized declarations are
// persisted: a finalized row is a legal filing and is returned verbatim
// forever, while open months are recomputed live on every read.
type G50Declaration struct {
	ID         int               `gorm:"primaryKey" json:"id"`
	BusinessId string            `gorm:"uniqueIndex:idx_g50_period;size:36;not null" json:"business_id"`
	Year       int               `gorm:"uniqueIndex:idx_g50_period;not null" json:"year"`
	Month      int               `gorm:"uniqueIndex:idx_g50_period;not null" json:"month"`
	Status     DeclarationStatus `gorm:"size:20" json:"status"`

	Turnover19        decimal.Decimal `gorm:"type:decimal(20,2)" json:"turnover_19"`
	Vat19             decimal.Decimal `gorm:"type:decimal(20,2)" json:"vat_19"`
	Turnover9         decimal.Decimal `gorm:"type:decimal(20,2)" json:"turnover_9"`
	Vat9              decimal.Decimal `gorm:"type:decimal(20,2)" json:"vat_9"`
	TurnoverExport    decimal.Decimal `gorm:"type:decimal(20,2)" json:"turnover_export"`
	TurnoverExempt    decimal.Decimal `gorm:"type:decimal(20,2)" json:"turnover_exempt"`
	VatCollectedTotal decimal.Decimal `gorm:"type:decimal(20,2)" json:"vat_collected_total"`

	VatDeductiblePurchases decimal.Decimal `gorm:"type:decimal(20,2)" json:"vat_deductible_purchases"`
	VatDeductibleImports   decimal.Decimal `gorm:"type:decimal(20,2)" json:"vat_deductible_imports"`
	VatDeductibleTotal     decimal.Decimal `gorm:"type:decimal(20,2)" json:"vat_deductible_total"`

	VatNetBeforeCredit decimal.Decimal `gorm:"type:decimal(20,2)" json:"vat_net_before_credit"`
	PreviousCredit     decimal.Decimal `gorm:"type:decimal(20,2)" json:"previous_credit"`
	VatNetAfterCredit  decimal.Decimal `gorm:"type:decimal(20,2)" json:"vat_net_after_credit"`
	VatPayable         decimal.Decimal `gorm:"type:decimal(20,2)" json:"vat_payable"`
	NewCredit          decimal.Decimal `gorm:"type:decimal(20,2)" json:"new_credit"`

	StampDutyCollected decimal.Decimal `gorm:"type:decimal(20,2)" json:"stamp_duty_collected"`

	// Non-VAT tax lines entered by hand at finalization.
	IbsAdvance         decimal.Decimal `gorm:"type:decimal(20,2)" json:"ibs_advance"`
	PayrollWithholding decimal.Decimal `gorm:"type:decimal(20,2)" json:"payroll_withholding"`
	TapAmount          decimal.Decimal `gorm:"type:decimal(20,2)" json:"tap_amount"`

	InvoiceCount     int        `json:"invoice_count"`
	PurchaseCount    int        `json:"purchase_count"`
	ImportEntryCount int        `json:"import_entry_count"`
	FinalizedAt      *time.Time `json:"finalized_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// G50ImportEntry is a manually captured VAT-on-imports line (customs D10) for
// a month, deductible alongside purchase VAT.
type G50ImportEntry struct {
	ID          int             `gorm:"primaryKey" json:"id"`
	BusinessId  string          `gorm:"index;size:36;not null" json:"business_id"`
	Year        int             `gorm:"index;not null" json:"year"`
	Month       int             `gorm:"not null" json:"month"`
	Description string          `gorm:"size:255" json:"description"`
	Reference   string          `gorm:"size:100" json:"reference"`
	AmountHt    decimal.Decimal `gorm:"type:decimal(20,2)" json:"amount_ht"`
	VatAmount   decimal.Decimal `gorm:"type:decimal(20,2)" json:"vat_amount"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewG50ImportEntry struct {
	Year        int             `json:"year" binding:"required"`
	Month       int             `json:"month" binding:"required,min=1,max=12"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
	AmountHt    decimal.Decimal `json:"amount_ht"`
	VatAmount   decimal.Decimal `json:"vat_amount"`
}

// G50ManualFields carries the hand-entered non-VAT tax lines merged in at
// finalization.
type G50ManualFields struct {
	IbsAdvance         decimal.Decimal `json:"ibs_advance"`
	PayrollWithholding decimal.Decimal `json:"payroll_withholding"`
	TapAmount          decimal.Decimal `json:"tap_amount"`
}

func findFinalizedG50(ctx context.Context, db *gorm.DB, businessId string, year int, month int) (*G50Declaration, error) {
	var decl G50Declaration
	err := db.WithContext(ctx).
		Where("business_id = ? AND year = ? AND month = ?", businessId, year, month).
		First(&decl).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &decl, nil
}

// previousCreditFor resolves the credit carried into (year, month): the
// previous month's finalized declaration wins, otherwise the static balance
// on the business record.
func previousCreditFor(ctx context.Context, db *gorm.DB, business *Business, year int, month int) (decimal.Decimal, error) {
	prevYear, prevMonth := previousPeriod(year, month)
	prev, err := findFinalizedG50(ctx, db, business.ID.String(), prevYear, prevMonth)
	if err != nil {
		return decimal.Zero, err
	}
	if prev != nil {
		return prev.NewCredit, nil
	}
	return business.VatCreditCarriedForward, nil
}

// computeG50Live aggregates the month from first principles: bucket sales
// line items by VAT rate, sum deductible VAT from purchases and import
// entries, then chain the credit from the previous period.
func computeG50Live(ctx context.Context, business *Business, year int, month int) (*G50Declaration, error) {
	db := config.GetDB()
	businessId := business.ID.String()

	start, end, err := monthRange(year, month, business.Timezone)
	if err != nil {
		return nil, err
	}

	var invoices []Invoice
	err = db.WithContext(ctx).Preload("Items").
		Where("business_id = ? AND type IN ? AND status NOT IN ? AND issue_date >= ? AND issue_date < ?",
			businessId,
			[]InvoiceType{InvoiceTypeInvoice, InvoiceTypeCreditNote},
			[]InvoiceStatus{InvoiceStatusDraft, InvoiceStatusCancelled},
			start, end).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}

	decl := G50Declaration{
		BusinessId: businessId,
		Year:       year,
		Month:      month,
	}

	for _, invoice := range invoices {
		// Credit notes reverse turnover and collected VAT.
		sign := decimal.NewFromInt(1)
		if invoice.Type == InvoiceTypeCreditNote {
			sign = decimal.NewFromInt(-1)
		}
		for _, item := range invoice.Items {
			ht := item.TotalHt.Mul(sign)
			vat := item.VatAmount.Mul(sign)
			switch {
			case item.VatRate.Equal(VatRateStandard):
				decl.Turnover19 = decl.Turnover19.Add(ht)
				decl.Vat19 = decl.Vat19.Add(vat)
			case item.VatRate.Equal(VatRateReduced):
				decl.Turnover9 = decl.Turnover9.Add(ht)
				decl.Vat9 = decl.Vat9.Add(vat)
			default:
				if invoice.ZeroRateReason == ZeroRateReasonExport {
					decl.TurnoverExport = decl.TurnoverExport.Add(ht)
				} else {
					decl.TurnoverExempt = decl.TurnoverExempt.Add(ht)
				}
			}
		}
		if invoice.PaymentMethod == PaymentMethodCash {
			decl.StampDutyCollected = decl.StampDutyCollected.Add(invoice.StampDutyAmount.Mul(sign))
		}
		decl.InvoiceCount++
	}

	var purchases []PurchaseInvoice
	err = db.WithContext(ctx).
		Where("business_id = ? AND purchase_date >= ? AND purchase_date < ?", businessId, start, end).
		Find(&purchases).Error
	if err != nil {
		return nil, err
	}
	for _, p := range purchases {
		decl.VatDeductiblePurchases = decl.VatDeductiblePurchases.Add(p.TotalVat)
		decl.PurchaseCount++
	}

	var imports []G50ImportEntry
	err = db.WithContext(ctx).
		Where("business_id = ? AND year = ? AND month = ?", businessId, year, month).
		Find(&imports).Error
	if err != nil {
		return nil, err
	}
	for _, entry := range imports {
		decl.VatDeductibleImports = decl.VatDeductibleImports.Add(entry.VatAmount)
		decl.ImportEntryCount++
	}

	decl.VatCollectedTotal = decl.Vat19.Add(decl.Vat9)
	decl.VatDeductibleTotal = decl.VatDeductiblePurchases.Add(decl.VatDeductibleImports)
	decl.VatNetBeforeCredit = decl.VatCollectedTotal.Sub(decl.VatDeductibleTotal)

	previousCredit, err := previousCreditFor(ctx, db, business, year, month)
	if err != nil {
		return nil, err
	}
	decl.PreviousCredit = previousCredit
	decl.VatNetAfterCredit = decl.VatNetBeforeCredit.Sub(previousCredit)

	if decl.VatNetAfterCredit.IsNegative() {
		decl.NewCredit = decl.VatNetAfterCredit.Abs()
		decl.VatPayable = decimal.Zero
	} else {
		decl.VatPayable = decl.VatNetAfterCredit
		decl.NewCredit = decimal.Zero
	}

	return &decl, nil
}

// GetG50 returns the finalized snapshot verbatim when one exists, otherwise
// a live computation.
func GetG50(ctx context.Context, year int, month int) (*G50Declaration, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return nil, err
	}
	if month < 1 || month > 12 {
		return nil, utils.NewValidationError("month", "month must be within [1, 12]")
	}

	finalized, err := findFinalizedG50(ctx, config.GetDB(), businessId, year, month)
	if err != nil {
		return nil, err
	}
	if finalized != nil {
		return finalized, nil
	}
	return computeG50Live(ctx, business, year, month)
}

// FinalizeG50 freezes the month. The chain is recomputed server-side, a
// stale client snapshot is never trusted. The resulting credit is written
// onto the business record in the same transaction so every later month
// starts from it.
func FinalizeG50(ctx context.Context, year int, month int, manual *G50ManualFields) (*G50Declaration, error) {
	db := config.GetDB()

	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return nil, err
	}
	if month < 1 || month > 12 {
		return nil, utils.NewValidationError("month", "month must be within [1, 12]")
	}

	unlock, err := utils.LockBusiness(ctx, businessId, "g50-finalize")
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := findFinalizedG50(ctx, db, businessId, year, month)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, utils.ErrorDeclarationFinalized
	}

	decl, err := computeG50Live(ctx, business, year, month)
	if err != nil {
		return nil, err
	}
	if manual != nil {
		decl.IbsAdvance = manual.IbsAdvance
		decl.PayrollWithholding = manual.PayrollWithholding
		decl.TapAmount = manual.TapAmount
	}
	now := time.Now()
	decl.Status = DeclarationStatusFinalized
	decl.FinalizedAt = &now

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.WithContext(ctx).Create(decl).Error; err != nil {
		return nil, err
	}

	if err := tx.WithContext(ctx).Model(&Business{}).Where("id = ?", businessId).
		Update("vat_credit_carried_forward", decl.NewCredit).Error; err != nil {
		return nil, err
	}

	recordHistory(tx.WithContext(ctx), "create", decl.ID, "g50_declarations", nil, decl, "finalized G50")

	if err := PublishEvent(ctx, tx, businessId, EventG50Finalized, decl.ID, "g50_declarations", decl); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return decl, nil
}

func AddG50ImportEntry(ctx context.Context, input *NewG50ImportEntry) (*G50ImportEntry, error) {
	db := config.GetDB()

	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}

	finalized, err := findFinalizedG50(ctx, db, businessId, input.Year, input.Month)
	if err != nil {
		return nil, err
	}
	if finalized != nil {
		return nil, utils.ErrorDeclarationFinalized
	}
	if input.VatAmount.IsNegative() || input.AmountHt.IsNegative() {
		return nil, utils.NewValidationError("vat_amount", "amounts must not be negative")
	}

	entry := G50ImportEntry{
		BusinessId:  businessId,
		Year:        input.Year,
		Month:       input.Month,
		Description: input.Description,
		Reference:   input.Reference,
		AmountHt:    utils.RoundMoney(input.AmountHt),
		VatAmount:   utils.RoundMoney(input.VatAmount),
	}

	tx := db.Begin()
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}
	recordHistory(tx.WithContext(ctx), "create", entry.ID, "g50_import_entries", nil, entry, "added import VAT entry")

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func DeleteG50ImportEntry(ctx context.Context, id int) (*G50ImportEntry, error) {
	db := config.GetDB()

	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	entry, err := utils.FetchModel[G50ImportEntry](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	finalized, err := findFinalizedG50(ctx, db, businessId, entry.Year, entry.Month)
	if err != nil {
		return nil, err
	}
	if finalized != nil {
		return nil, utils.ErrorDeclarationFinalized
	}

	tx := db.Begin()
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.WithContext(ctx).Delete(&G50ImportEntry{}, entry.ID).Error; err != nil {
		return nil, err
	}
	recordHistory(tx.WithContext(ctx), "delete", entry.ID, "g50_import_entries", entry, nil, "removed import VAT entry")

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func GetG50ImportEntries(ctx context.Context, year int, month int) ([]*G50ImportEntry, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	var entries []*G50ImportEntry
	err = db.WithContext(ctx).
		Where("business_id = ? AND year = ? AND month = ?", businessId, year, month).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
