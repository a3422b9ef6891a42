package models

import (
	"context"
	"time"

	"github.com/dzfacture/facture_backend/config"
	"github.com/dzfacture/facture_backend/utils"
	"github.com/shopspring/decimal"
)

// PurchaseInvoice records supplier invoices so their VAT can be deducted on
// the monthly declaration. Only the fiscal fields matter here, this is not a
// full payables ledger.
type PurchaseInvoice struct {
	ID           int                   `gorm:"primaryKey" json:"id"`
	BusinessId   string                `gorm:"index;size:36;not null" json:"business_id"`
	SupplierName string                `gorm:"size:255;not null" json:"supplier_name"`
	SupplierNif  string                `gorm:"size:20" json:"supplier_nif"`
	Reference    string                `gorm:"size:100" json:"reference"`
	PurchaseDate time.Time             `gorm:"index;not null" json:"purchase_date"`
	TotalHt      decimal.Decimal       `gorm:"type:decimal(20,2)" json:"total_ht"`
	TotalVat     decimal.Decimal       `gorm:"type:decimal(20,2)" json:"total_vat"`
	Items        []PurchaseInvoiceItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt    time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseInvoiceItem struct {
	ID                int             `gorm:"primaryKey" json:"id"`
	PurchaseInvoiceId int             `gorm:"index;not null" json:"purchase_invoice_id"`
	Name              string          `gorm:"size:255;not null" json:"name"`
	AmountHt          decimal.Decimal `gorm:"type:decimal(20,2)" json:"amount_ht"`
	VatRate           decimal.Decimal `gorm:"type:decimal(5,2)" json:"vat_rate"`
	VatAmount         decimal.Decimal `gorm:"type:decimal(20,2)" json:"vat_amount"`
}

type NewPurchaseInvoice struct {
	SupplierName string                   `json:"supplier_name" binding:"required"`
	SupplierNif  string                   `json:"supplier_nif"`
	Reference    string                   `json:"reference"`
	PurchaseDate time.Time                `json:"purchase_date" binding:"required"`
	Items        []NewPurchaseInvoiceItem `json:"items" binding:"required,dive"`
}

type NewPurchaseInvoiceItem struct {
	Name     string          `json:"name" binding:"required"`
	AmountHt decimal.Decimal `json:"amount_ht"`
	VatRate  decimal.Decimal `json:"vat_rate"`
}

// CheckPeriodLock satisfies utils.ModelChangeLocker.
func (p PurchaseInvoice) CheckPeriodLock(ctx context.Context) error {
	return validatePeriodLock(ctx, p.BusinessId, p.PurchaseDate)
}

func CreatePurchaseInvoice(ctx context.Context, input *NewPurchaseInvoice) (*PurchaseInvoice, error) {
	db := config.GetDB()

	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if len(input.Items) == 0 {
		return nil, utils.NewValidationError("items", "at least one line is required")
	}
	if err := validatePeriodLock(ctx, businessId, input.PurchaseDate); err != nil {
		return nil, err
	}

	var items []PurchaseInvoiceItem
	var exactHt, exactVat decimal.Decimal
	for _, line := range input.Items {
		if line.AmountHt.IsNegative() {
			return nil, utils.NewValidationError("items", "amount must not be negative")
		}
		if line.VatRate.IsNegative() || line.VatRate.GreaterThan(oneHundred) {
			return nil, utils.NewValidationError("items", "vat rate must be within [0, 100]")
		}
		vatAmount := utils.RoundMoney(line.AmountHt.Mul(line.VatRate).Div(oneHundred))
		items = append(items, PurchaseInvoiceItem{
			Name:      line.Name,
			AmountHt:  utils.RoundMoney(line.AmountHt),
			VatRate:   line.VatRate,
			VatAmount: vatAmount,
		})
		exactHt = exactHt.Add(line.AmountHt)
		exactVat = exactVat.Add(line.AmountHt.Mul(line.VatRate).Div(oneHundred))
	}

	purchase := PurchaseInvoice{
		BusinessId:   businessId,
		SupplierName: input.SupplierName,
		SupplierNif:  input.SupplierNif,
		Reference:    input.Reference,
		PurchaseDate: input.PurchaseDate,
		TotalHt:      utils.RoundMoney(exactHt),
		TotalVat:     utils.RoundMoney(exactVat),
		Items:        items,
	}

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.WithContext(ctx).Create(&purchase).Error; err != nil {
		return nil, err
	}

	recordHistory(tx.WithContext(ctx), "create", purchase.ID, "purchase_invoices", nil, purchase, "recorded purchase from "+purchase.SupplierName)

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

func DeletePurchaseInvoice(ctx context.Context, id int) (*PurchaseInvoice, error) {
	db := config.GetDB()

	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	purchase, err := utils.FetchModelForChange[PurchaseInvoice](ctx, businessId, id, "Items")
	if err != nil {
		return nil, err
	}

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.WithContext(ctx).Where("purchase_invoice_id = ?", purchase.ID).Delete(&PurchaseInvoiceItem{}).Error; err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(&PurchaseInvoice{}, purchase.ID).Error; err != nil {
		return nil, err
	}

	recordHistory(tx.WithContext(ctx), "delete", purchase.ID, "purchase_invoices", purchase, nil, "deleted purchase "+purchase.Reference)

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return purchase, nil
}

func GetPurchaseInvoicesAll(ctx context.Context) ([]*PurchaseInvoice, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchAllModels[PurchaseInvoice](ctx, businessId, "Items")
}
