package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dzfacture/facture_backend/config"
	"github.com/dzfacture/facture_backend/utils"
	"gorm.io/gorm"
)

// History is the before/after audit trail written alongside every mutating
// operation.
type History struct {
	ID            int       `gorm:"primaryKey" json:"id"`
	BusinessId    string    `gorm:"index;size:36;not null" json:"business_id"`
	ActionType    string    `gorm:"size:10;not null" json:"action_type"`
	Before        string    `gorm:"type:text" json:"before"`
	After         string    `gorm:"type:text" json:"after"`
	Description   string    `gorm:"type:text" json:"description"`
	ReferenceId   int       `gorm:"index" json:"reference_id"`
	ReferenceType string    `gorm:"size:255" json:"reference_type"`
	UserId        int       `gorm:"index" json:"user_id"`
	UserName      string    `gorm:"size:100" json:"user_name"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// recordHistory writes an audit record on the caller's transaction.
// Best-effort side channel: failures are logged and swallowed, they must
// never block the legally significant primary operation.
func recordHistory(tx *gorm.DB,
	actionType string,
	referenceId int,
	referenceType string,
	before interface{},
	after interface{},
	description string) {

	ctx := tx.Statement.Context

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	userName, ok := utils.GetUserNameFromContext(ctx)
	if !ok {
		userName = "system"
	}

	b, _ := json.Marshal(before)
	a, _ := json.Marshal(after)

	history := History{
		BusinessId:    businessId,
		ActionType:    actionType,
		Before:        string(b),
		After:         string(a),
		Description:   description,
		ReferenceId:   referenceId,
		ReferenceType: referenceType,
		UserId:        userId,
		UserName:      userName,
	}

	if err := tx.Create(&history).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "recordHistory", referenceType, history, err)
	}
}

func GetHistoryByReference(ctx context.Context, referenceType string, referenceId int) ([]*History, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	var results []*History
	err = db.WithContext(ctx).
		Where("business_id = ? AND reference_type = ? AND reference_id = ?", businessId, referenceType, referenceId).
		Order("created_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
