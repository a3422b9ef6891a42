package models

import (
	"context"
	"time"

	"github.com/dzfacture/facture_backend/config"
	"gorm.io/gorm"
)

// PaymentReminder is a scheduled nudge for an unpaid invoice. The workflow
// worker marks due reminders Sent and hands them to the outbox.
type PaymentReminder struct {
	ID           int        `gorm:"primaryKey" json:"id"`
	BusinessId   string     `gorm:"index;size:36;not null" json:"business_id"`
	InvoiceId    int        `gorm:"index;not null" json:"invoice_id"`
	ScheduledFor time.Time  `gorm:"index;not null" json:"scheduled_for"`
	Status       string     `gorm:"size:10;not null;default:Pending" json:"status"`
	SentAt       *time.Time `json:"sent_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// Offsets in days relative to the due date.
var defaultReminderOffsets = []int{0, 7, 14}

// scheduleDefaultReminders queues the standard reminder ladder when the
// invoice is issued. Invoices without a due date get none.
func scheduleDefaultReminders(tx *gorm.DB, invoice *Invoice) error {
	if invoice.DueDate == nil {
		return nil
	}
	for _, days := range defaultReminderOffsets {
		reminder := PaymentReminder{
			BusinessId:   invoice.BusinessId,
			InvoiceId:    invoice.ID,
			ScheduledFor: invoice.DueDate.AddDate(0, 0, days),
			Status:       ReminderStatusPending,
		}
		if err := tx.Create(&reminder).Error; err != nil {
			return err
		}
	}
	return nil
}

func GetPendingReminders(ctx context.Context) ([]*PaymentReminder, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	var results []*PaymentReminder
	err = db.WithContext(ctx).
		Where("business_id = ? AND status = ?", businessId, ReminderStatusPending).
		Order("scheduled_for ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
