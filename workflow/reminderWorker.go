package workflow

import (
	"context"
	"time"

	"github.com/dzfacture/facture_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReminderWorker promotes due payment reminders to the outbox. Reminders for
// invoices that were paid or cancelled in the meantime are discarded.
type ReminderWorker struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	PollInterval time.Duration
	BatchSize    int
}

func NewReminderWorker(db *gorm.DB, logger *logrus.Logger) *ReminderWorker {
	return &ReminderWorker{
		DB:           db,
		Logger:       logger,
		PollInterval: time.Minute,
		BatchSize:    100,
	}
}

func (w *ReminderWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		w.ProcessDue(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.PollInterval):
		}
	}
}

// ProcessDue handles one batch of due reminders. Exported for tests.
func (w *ReminderWorker) ProcessDue(ctx context.Context) {
	now := time.Now()

	var due []models.PaymentReminder
	err := w.DB.WithContext(ctx).
		Where("status = ? AND scheduled_for <= ?", models.ReminderStatusPending, now).
		Order("id ASC").
		Limit(w.BatchSize).
		Find(&due).Error
	if err != nil {
		if w.Logger != nil {
			w.Logger.WithFields(logrus.Fields{"field": "ReminderWorker"}).Error("fetching due reminders: " + err.Error())
		}
		return
	}

	for _, reminder := range due {
		var invoice models.Invoice
		err := w.DB.WithContext(ctx).First(&invoice, reminder.InvoiceId).Error
		if err != nil || invoice.Status.IsTerminal() {
			// Paid, cancelled or deleted invoices need no nudging.
			_ = w.DB.WithContext(ctx).Delete(&models.PaymentReminder{}, reminder.ID).Error
			continue
		}

		err = w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := models.PublishEvent(ctx, tx, reminder.BusinessId, models.EventPaymentReminder, invoice.ID, "invoices", invoice); err != nil {
				return err
			}
			return tx.Model(&models.PaymentReminder{}).Where("id = ?", reminder.ID).Updates(map[string]interface{}{
				"status":  models.ReminderStatusSent,
				"sent_at": &now,
			}).Error
		})
		if err != nil && w.Logger != nil {
			w.Logger.WithFields(logrus.Fields{
				"field":       "ReminderWorker",
				"reminder_id": reminder.ID,
				"invoice_id":  reminder.InvoiceId,
			}).Error("processing reminder: " + err.Error())
		}
	}
}
