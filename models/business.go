package models

import (
	"context"
	"errors"
	"time"

	"github.com/dzfacture/facture_backend/config"
	"github.com/dzfacture/facture_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Business struct {
	ID           uuid.UUID    `gorm:"type:char(36);primaryKey" json:"id"`
	Name         string       `gorm:"index;size:100;not null" json:"name" binding:"required"`
	ContactName  string       `gorm:"size:100" json:"contact_name"`
	Email        string       `gorm:"size:255" json:"email"`
	Phone        string       `gorm:"size:20" json:"phone"`
	Address      string       `gorm:"type:text" json:"address"`
	City         string       `gorm:"size:100" json:"city"`
	Type         BusinessType `gorm:"size:20;not null" json:"type" binding:"required"`
	FiscalRegime FiscalRegime `gorm:"size:20;not null" json:"fiscal_regime" binding:"required"`
	MainActivity MainActivity `gorm:"size:20" json:"main_activity"`

	// Fiscal identifiers. Auto-entrepreneurs carry only the NIF.
	Nif string `gorm:"size:20" json:"nif"`
	Nis string `gorm:"size:20" json:"nis"`
	Rc  string `gorm:"size:20" json:"rc"`
	Ai  string `gorm:"size:20" json:"ai"`

	DefaultVatRate decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"default_vat_rate"`

	// VatCreditCarriedForward is the authoritative running VAT credit,
	// rewritten every time a G50 is finalized. It is rebuildable from the
	// finalized declaration history.
	VatCreditCarriedForward decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"vat_credit_carried_forward"`

	Timezone  string            `gorm:"size:50" json:"timezone"`
	Prefixes  []DocumentPrefix  `gorm:"foreignKey:BusinessId" json:"prefixes"`
	IsActive  *bool             `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// DocumentPrefix configures the human-readable number prefix per document
// type, e.g. FAC2026-001.
type DocumentPrefix struct {
	BusinessId   string      `gorm:"primaryKey;size:36;autoIncrement:false" json:"business_id"`
	DocumentType InvoiceType `gorm:"primaryKey;size:20;autoIncrement:false" json:"document_type"`
	Prefix       string      `gorm:"size:10;not null" json:"prefix"`
}

type NewBusiness struct {
	Name           string          `json:"name" binding:"required"`
	ContactName    string          `json:"contact_name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	Address        string          `json:"address"`
	City           string          `json:"city"`
	Type           BusinessType    `json:"type" binding:"required"`
	FiscalRegime   FiscalRegime    `json:"fiscal_regime" binding:"required"`
	MainActivity   MainActivity    `json:"main_activity"`
	Nif            string          `json:"nif"`
	Nis            string          `json:"nis"`
	Rc             string          `json:"rc"`
	Ai             string          `json:"ai"`
	DefaultVatRate decimal.Decimal `json:"default_vat_rate"`
	Timezone       string          `json:"timezone"`
}

// validate enforces the fixed type/regime/VAT mapping at write time. The
// server is authoritative: an auto-entrepreneur can never carry a VAT
// default or real-regime identifiers, whatever the client sent.
func (input *NewBusiness) validate() error {
	if !input.Type.Valid() {
		return utils.NewValidationError("type", "invalid business type")
	}
	if !input.FiscalRegime.Valid() {
		return utils.NewValidationError("fiscal_regime", "invalid fiscal regime")
	}
	if input.MainActivity != "" && !input.MainActivity.Valid() {
		return utils.NewValidationError("main_activity", "invalid main activity")
	}
	switch input.Type {
	case BusinessTypeAutoEntrepreneur:
		if input.FiscalRegime != FiscalRegimeAutoEntrepreneur {
			return utils.NewValidationError("fiscal_regime", "auto-entrepreneur businesses use the auto-entrepreneur regime")
		}
		if input.Rc != "" || input.Ai != "" || input.Nis != "" {
			return utils.NewValidationError("rc", "auto-entrepreneur businesses carry no RC/AI/NIS")
		}
	case BusinessTypeCorporate:
		if input.FiscalRegime != FiscalRegimeReal {
			return utils.NewValidationError("fiscal_regime", "corporate businesses are taxed under the real regime")
		}
	case BusinessTypeIndividual:
		if input.FiscalRegime == FiscalRegimeAutoEntrepreneur {
			return utils.NewValidationError("fiscal_regime", "individual businesses are taxed under the real or flat-rate regime")
		}
	}
	if input.DefaultVatRate.IsNegative() || input.DefaultVatRate.GreaterThan(decimal.NewFromInt(100)) {
		return utils.NewValidationError("default_vat_rate", "vat rate must be within [0,100]")
	}
	return nil
}

// IsVatSubject reports whether the business collects VAT at all.
// Auto-entrepreneur and flat-rate taxpayers invoice without VAT.
func (b *Business) IsVatSubject() bool {
	return b.FiscalRegime == FiscalRegimeReal
}

func CreateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	defaultVat := input.DefaultVatRate
	if input.Type == BusinessTypeAutoEntrepreneur || input.FiscalRegime == FiscalRegimeFlatRate {
		// forced, regardless of client input
		defaultVat = decimal.Zero
	}

	business := Business{
		ID:             uuid.New(),
		Name:           input.Name,
		ContactName:    input.ContactName,
		Email:          input.Email,
		Phone:          input.Phone,
		Address:        input.Address,
		City:           input.City,
		Type:           input.Type,
		FiscalRegime:   input.FiscalRegime,
		MainActivity:   input.MainActivity,
		Nif:            input.Nif,
		Nis:            input.Nis,
		Rc:             input.Rc,
		Ai:             input.Ai,
		DefaultVatRate: defaultVat,
		Timezone:       input.Timezone,
		IsActive:       utils.NewTrue(),
	}
	for docType, prefix := range defaultDocumentPrefixes {
		business.Prefixes = append(business.Prefixes, DocumentPrefix{
			BusinessId:   business.ID.String(),
			DocumentType: docType,
			Prefix:       prefix,
		})
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&business).Error; err != nil {
		return nil, err
	}
	return &business, nil
}

func GetBusinessById(ctx context.Context, businessId string) (*Business, error) {
	db := config.GetDB()
	var business Business
	if err := db.WithContext(ctx).Where("id = ?", businessId).First(&business).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &business, nil
}

// SetDocumentPrefix upserts the prefix used for one document type and
// invalidates the cached prefix map.
func SetDocumentPrefix(ctx context.Context, businessId string, docType InvoiceType, prefix string) error {
	if !docType.Valid() {
		return utils.NewValidationError("document_type", "invalid document type")
	}
	if prefix == "" {
		return utils.NewValidationError("prefix", "prefix is required")
	}
	db := config.GetDB()
	row := DocumentPrefix{BusinessId: businessId, DocumentType: docType, Prefix: prefix}
	if err := db.WithContext(ctx).Save(&row).Error; err != nil {
		return err
	}
	return config.DeleteRedisKey(prefixCacheKey(businessId))
}

func prefixCacheKey(businessId string) string {
	return "documentPrefixMap:" + businessId
}

// getDocumentPrefix resolves the number prefix for a document type, redis
// or db.
func getDocumentPrefix(ctx context.Context, businessId string, docType InvoiceType) (string, error) {
	prefixes := make(map[InvoiceType]string)
	exists, err := config.GetRedisObject(prefixCacheKey(businessId), &prefixes)
	if err != nil {
		return "", err
	}
	if !exists {
		db := config.GetDB()
		var rows []DocumentPrefix
		if err := db.WithContext(ctx).Where("business_id = ?", businessId).Find(&rows).Error; err != nil {
			return "", err
		}
		for _, row := range rows {
			prefixes[row.DocumentType] = row.Prefix
		}
		if err := config.SetRedisObject(prefixCacheKey(businessId), &prefixes, 0); err != nil {
			return "", err
		}
	}

	prefix, ok := prefixes[docType]
	if !ok || prefix == "" {
		return DefaultDocumentPrefix(docType), nil
	}
	return prefix, nil
}

func businessIdFromContext(ctx context.Context) (string, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return "", errors.New("business id is required")
	}
	return businessId, nil
}
