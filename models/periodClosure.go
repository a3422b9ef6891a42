package models

import (
	"context"
	"time"

	"github.com/dzfacture/facture_backend/config"
	"github.com/dzfacture/facture_backend/utils"
)

// PeriodClosure locks a date range once its books are closed. Any
// invoice/purchase/payment whose relevant date falls inside a closure is
// immutable; the only remedy is an explicit reopen.
type PeriodClosure struct {
	ID         int         `gorm:"primaryKey" json:"id"`
	BusinessId string      `gorm:"index;size:36;not null" json:"business_id"`
	StartDate  time.Time   `gorm:"not null" json:"start_date" binding:"required"`
	EndDate    time.Time   `gorm:"not null" json:"end_date" binding:"required"`
	Type       ClosureType `gorm:"size:20;default:Custom" json:"type"`
	Note       string      `gorm:"type:text" json:"note"`
	CreatedAt  time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

type NewPeriodClosure struct {
	StartDate time.Time   `json:"start_date" binding:"required"`
	EndDate   time.Time   `json:"end_date" binding:"required"`
	Type      ClosureType `json:"type"`
	Note      string      `json:"note"`
}

// IsPeriodLocked reports whether the date falls inside any closure of the
// business. Comparison is by calendar date in the business timezone.
func IsPeriodLocked(ctx context.Context, businessId string, date time.Time) (bool, error) {
	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return false, err
	}
	target, err := utils.ConvertToDate(date, business.Timezone)
	if err != nil {
		return false, err
	}

	db := config.GetDB()
	var closures []PeriodClosure
	if err := db.WithContext(ctx).Where("business_id = ?", businessId).Find(&closures).Error; err != nil {
		return false, err
	}
	for _, closure := range closures {
		start, err := utils.ConvertToDate(closure.StartDate, business.Timezone)
		if err != nil {
			return false, err
		}
		end, err := utils.ConvertToDate(closure.EndDate, business.Timezone)
		if err != nil {
			return false, err
		}
		if !target.Before(start) && !target.After(end) {
			return true, nil
		}
	}
	return false, nil
}

// validatePeriodLock is consulted before every mutating operation whose
// effective date may fall in a closed period.
func validatePeriodLock(ctx context.Context, businessId string, date time.Time) error {
	locked, err := IsPeriodLocked(ctx, businessId, date)
	if err != nil {
		return err
	}
	if locked {
		return utils.ErrorPeriodLocked
	}
	return nil
}

func ClosePeriod(ctx context.Context, input *NewPeriodClosure) (*PeriodClosure, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if input.EndDate.Before(input.StartDate) {
		return nil, utils.NewValidationError("end_date", "end date precedes start date")
	}
	closureType := input.Type
	if closureType == "" {
		closureType = ClosureTypeCustom
	}

	closure := PeriodClosure{
		BusinessId: businessId,
		StartDate:  input.StartDate,
		EndDate:    input.EndDate,
		Type:       closureType,
		Note:       input.Note,
	}
	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&closure).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	recordHistory(tx.WithContext(ctx), "create", closure.ID, "period_closures", nil, closure, "Period closed")
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &closure, nil
}

// ReopenPeriod is a separate explicit action, never a side effect of any
// other mutation.
func ReopenPeriod(ctx context.Context, id int) (*PeriodClosure, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	closure, err := utils.FetchModel[PeriodClosure](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Delete(closure).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	recordHistory(tx.WithContext(ctx), "delete", closure.ID, "period_closures", closure, nil, "Period reopened")
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return closure, nil
}

func GetPeriodClosuresAll(ctx context.Context) ([]*PeriodClosure, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchAllModels[PeriodClosure](ctx, businessId)
}
