package models

import (
	"context"
	"time"

	"github.com/dzfacture/facture_backend/config"
	"github.com/dzfacture/facture_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// G12Forecast is the provisional turnover a flat-rate or auto-entrepreneur
// taxpayer files ahead of the year. One record per (business, year).
type G12Forecast struct {
	ID               int             `gorm:"primaryKey" json:"id"`
	BusinessId       string          `gorm:"uniqueIndex:idx_g12_forecast;size:36;not null" json:"business_id"`
	Year             int             `gorm:"uniqueIndex:idx_g12_forecast;not null" json:"year"`
	TurnoverGoods    decimal.Decimal `gorm:"type:decimal(20,2)" json:"turnover_goods"`
	TurnoverServices decimal.Decimal `gorm:"type:decimal(20,2)" json:"turnover_services"`
	TaxDueInitial    decimal.Decimal `gorm:"type:decimal(20,2)" json:"tax_due_initial"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewG12Forecast struct {
	Year             int             `json:"year" binding:"required"`
	TurnoverGoods    decimal.Decimal `json:"turnover_goods"`
	TurnoverServices decimal.Decimal `json:"turnover_services"`
}

// G12Report is the computed annual declaration. Not persisted, always
// derived from the year's invoices.
type G12Report struct {
	BusinessId       string          `json:"business_id"`
	Year             int             `json:"year"`
	FiscalRegime     FiscalRegime    `json:"fiscal_regime"`
	IbsRate          decimal.Decimal `json:"ibs_rate"`
	TurnoverGoods    decimal.Decimal `json:"turnover_goods"`
	TurnoverServices decimal.Decimal `json:"turnover_services"`
	TurnoverTotal    decimal.Decimal `json:"turnover_total"`
	PriorTurnover    decimal.Decimal `json:"prior_turnover"`
	ProjectedTax     decimal.Decimal `json:"projected_tax"`
	TaxDueInitial    decimal.Decimal `json:"tax_due_initial"`
	Adjustment       decimal.Decimal `json:"adjustment"`
}

// realizedTurnover sums invoiced HT for a calendar year, split goods vs
// services. Credit notes subtract.
func realizedTurnover(ctx context.Context, business *Business, year int) (decimal.Decimal, decimal.Decimal, error) {
	db := config.GetDB()

	start, _, err := monthRange(year, 1, business.Timezone)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	_, end, err := monthRange(year, 12, business.Timezone)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	var invoices []Invoice
	err = db.WithContext(ctx).Preload("Items").
		Where("business_id = ? AND type IN ? AND status NOT IN ? AND issue_date >= ? AND issue_date < ?",
			business.ID.String(),
			[]InvoiceType{InvoiceTypeInvoice, InvoiceTypeCreditNote},
			[]InvoiceStatus{InvoiceStatusDraft, InvoiceStatusCancelled},
			start, end).
		Find(&invoices).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	var goods, services decimal.Decimal
	for _, invoice := range invoices {
		sign := decimal.NewFromInt(1)
		if invoice.Type == InvoiceTypeCreditNote {
			sign = decimal.NewFromInt(-1)
		}
		for _, item := range invoice.Items {
			ht := item.TotalHt.Mul(sign)
			if item.Kind == ItemKindServices {
				services = services.Add(ht)
			} else {
				goods = goods.Add(ht)
			}
		}
	}
	return goods, services, nil
}

// forecastTax applies the regime's rate table to a forecast or realized
// turnover split.
func forecastTax(regime FiscalRegime, goods decimal.Decimal, services decimal.Decimal) decimal.Decimal {
	if regime == FiscalRegimeAutoEntrepreneur {
		total := goods.Add(services)
		return utils.RoundMoney(total.Mul(AutoEntrepreneurRate).Div(oneHundred))
	}
	tax := goods.Mul(IfuRateForKind(ItemKindGoods)).Div(oneHundred).
		Add(services.Mul(IfuRateForKind(ItemKindServices)).Div(oneHundred))
	return utils.RoundMoney(tax)
}

// GetG12 computes the annual declaration. Real-regime businesses get the
// informational goods/services split only; flat-rate and auto-entrepreneur
// regimes additionally get the projected tax and the adjustment against any
// saved forecast.
func GetG12(ctx context.Context, year int) (*G12Report, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return nil, err
	}

	goods, services, err := realizedTurnover(ctx, business, year)
	if err != nil {
		return nil, err
	}

	report := G12Report{
		BusinessId:       businessId,
		Year:             year,
		FiscalRegime:     business.FiscalRegime,
		TurnoverGoods:    goods,
		TurnoverServices: services,
		TurnoverTotal:    goods.Add(services),
	}

	if business.FiscalRegime == FiscalRegimeReal {
		// Informational: profits of real-regime companies are taxed under
		// IBS at the activity's rate, outside this engine's scope.
		report.IbsRate = IbsRateFor(business.MainActivity)
		return &report, nil
	}

	priorGoods, priorServices, err := realizedTurnover(ctx, business, year-1)
	if err != nil {
		return nil, err
	}
	report.PriorTurnover = priorGoods.Add(priorServices)
	report.ProjectedTax = forecastTax(business.FiscalRegime, goods, services)

	forecast, err := GetG12Forecast(ctx, year)
	if err != nil {
		return nil, err
	}
	if forecast != nil {
		report.TaxDueInitial = forecast.TaxDueInitial
	}
	report.Adjustment = report.ProjectedTax.Sub(report.TaxDueInitial)

	return &report, nil
}

func GetG12Forecast(ctx context.Context, year int) (*G12Forecast, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	var forecast G12Forecast
	err = db.WithContext(ctx).
		Where("business_id = ? AND year = ?", businessId, year).
		First(&forecast).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &forecast, nil
}

// SaveG12Forecast upserts the single forecast record for the year. Only
// flat-rate and auto-entrepreneur regimes file forecasts.
func SaveG12Forecast(ctx context.Context, input *NewG12Forecast) (*G12Forecast, error) {
	db := config.GetDB()

	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return nil, err
	}
	if business.FiscalRegime == FiscalRegimeReal {
		return nil, utils.NewValidationError("fiscal_regime", "real-regime businesses do not file turnover forecasts")
	}
	if input.TurnoverGoods.IsNegative() || input.TurnoverServices.IsNegative() {
		return nil, utils.NewValidationError("turnover", "turnover must not be negative")
	}

	taxDue := forecastTax(business.FiscalRegime, input.TurnoverGoods, input.TurnoverServices)

	existing, err := GetG12Forecast(ctx, input.Year)
	if err != nil {
		return nil, err
	}

	tx := db.Begin()
	defer func() { _ = tx.Rollback().Error }()

	if existing != nil {
		before := *existing
		existing.TurnoverGoods = input.TurnoverGoods
		existing.TurnoverServices = input.TurnoverServices
		existing.TaxDueInitial = taxDue
		if err := tx.WithContext(ctx).Model(&G12Forecast{}).Where("id = ?", existing.ID).Updates(map[string]interface{}{
			"turnover_goods":    existing.TurnoverGoods,
			"turnover_services": existing.TurnoverServices,
			"tax_due_initial":   existing.TaxDueInitial,
		}).Error; err != nil {
			return nil, err
		}
		recordHistory(tx.WithContext(ctx), "update", existing.ID, "g12_forecasts", before, existing, "updated turnover forecast")
		if err := tx.Commit().Error; err != nil {
			return nil, err
		}
		return existing, nil
	}

	forecast := G12Forecast{
		BusinessId:       businessId,
		Year:             input.Year,
		TurnoverGoods:    input.TurnoverGoods,
		TurnoverServices: input.TurnoverServices,
		TaxDueInitial:    taxDue,
	}
	if err := tx.WithContext(ctx).Create(&forecast).Error; err != nil {
		return nil, err
	}
	recordHistory(tx.WithContext(ctx), "create", forecast.ID, "g12_forecasts", nil, forecast, "saved turnover forecast")

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &forecast, nil
}
