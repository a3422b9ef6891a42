package models

import (
	"github.com/dzfacture/facture_backend/config"
	"github.com/dzfacture/facture_backend/utils"
	"gorm.io/gorm"
)

// MigrateAll runs AutoMigrate for every model on the given connection.
func MigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&Business{}, &DocumentPrefix{},
		&User{}, &UserAccount{},
		&Customer{},
		&Invoice{}, &InvoiceItem{}, &InvoiceCounter{},
		&Payment{}, &PaymentReminder{},
		&PurchaseInvoice{}, &PurchaseInvoiceItem{},
		&PeriodClosure{},
		&G50Declaration{}, &G50ImportEntry{},
		&G12Forecast{},
		&History{}, &OutboxRecord{}, &WebhookSubscription{},
	)
}

func MigrateTable() {
	utils.ErrorPanic(MigrateAll(config.GetDB()))
}
