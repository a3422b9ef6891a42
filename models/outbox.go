package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dzfacture/facture_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OutboxRecord is a pending domain event written in the same transaction
// as the change it describes. The workflow dispatcher delivers records to
// webhook subscribers and marks them processed.
type OutboxRecord struct {
	ID            int        `gorm:"primaryKey" json:"id"`
	BusinessId    string     `gorm:"index;size:36;not null" json:"business_id"`
	EventType     string     `gorm:"size:50;not null" json:"event_type"`
	ReferenceId   int        `gorm:"index" json:"reference_id"`
	ReferenceType string     `gorm:"size:50" json:"reference_type"`
	Payload       []byte     `gorm:"type:blob" json:"payload"`
	PublishStatus string     `gorm:"size:20;not null;default:PENDING;index" json:"publish_status"`
	Attempts      int        `gorm:"default:0" json:"attempts"`
	NextAttemptAt *time.Time `gorm:"index" json:"next_attempt_at"`
	LockedBy      *string    `gorm:"size:36" json:"locked_by"`
	LockedAt      *time.Time `json:"locked_at"`
	LastError     string     `gorm:"type:text" json:"last_error"`
	CorrelationId string     `gorm:"size:36" json:"correlation_id"`
	IsProcessed   bool       `gorm:"default:false;index" json:"is_processed"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// PublishEvent queues a domain event on the caller's transaction so the
// event is committed atomically with the state change it announces.
func PublishEvent(ctx context.Context, tx *gorm.DB, businessId string, eventType string, referenceId int, referenceType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	correlationId, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || correlationId == "" {
		correlationId = uuid.NewString()
	}

	now := time.Now()
	record := OutboxRecord{
		BusinessId:    businessId,
		EventType:     eventType,
		ReferenceId:   referenceId,
		ReferenceType: referenceType,
		Payload:       body,
		PublishStatus: OutboxPublishStatusPending,
		NextAttemptAt: &now,
		CorrelationId: correlationId,
	}
	return tx.Create(&record).Error
}
