package models

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// InvoiceCounter holds the last sequence number handed out per business,
// document type and year. Counters only move forward; a number is given
// back only when the deleted document still holds the highest sequence.
type InvoiceCounter struct {
	ID           int    `gorm:"primaryKey" json:"id"`
	BusinessId   string `gorm:"uniqueIndex:idx_counter_scope;size:36;not null" json:"business_id"`
	DocumentType string `gorm:"uniqueIndex:idx_counter_scope;size:20;not null" json:"document_type"`
	Year         int    `gorm:"uniqueIndex:idx_counter_scope;not null" json:"year"`
	Count        int    `gorm:"not null;default:0" json:"count"`
}

// nextDocumentNumber allocates the next sequence for the scope and formats
// the document number. The caller must hold the business lock and run
// inside a transaction so a failed create rolls the increment back.
func nextDocumentNumber(ctx context.Context, tx *gorm.DB, businessId string, documentType InvoiceType, year int) (int, string, error) {
	var counter InvoiceCounter
	err := tx.Where("business_id = ? AND document_type = ? AND year = ?", businessId, documentType, year).
		First(&counter).Error
	if err == gorm.ErrRecordNotFound {
		counter = InvoiceCounter{
			BusinessId:   businessId,
			DocumentType: string(documentType),
			Year:         year,
		}
		if err := tx.Create(&counter).Error; err != nil {
			return 0, "", err
		}
	} else if err != nil {
		return 0, "", err
	}

	counter.Count++
	if err := tx.Model(&InvoiceCounter{}).Where("id = ?", counter.ID).
		Update("count", counter.Count).Error; err != nil {
		return 0, "", err
	}

	prefix, err := getDocumentPrefix(ctx, businessId, documentType)
	if err != nil {
		return 0, "", err
	}

	number := fmt.Sprintf("%s%d-%03d", prefix, year, counter.Count)
	return counter.Count, number, nil
}

// releaseDocumentNumber hands the sequence back only when it is still the
// highest one allocated. Deleting from the middle of the series leaves a
// permanent gap on purpose.
func releaseDocumentNumber(tx *gorm.DB, businessId string, documentType InvoiceType, year int, sequenceNo int) error {
	var counter InvoiceCounter
	err := tx.Where("business_id = ? AND document_type = ? AND year = ?", businessId, documentType, year).
		First(&counter).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if counter.Count != sequenceNo {
		return nil
	}
	return tx.Model(&InvoiceCounter{}).Where("id = ?", counter.ID).
		Update("count", counter.Count-1).Error
}
