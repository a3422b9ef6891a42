package models

import (
	"context"
	"time"

	"github.com/dzfacture/facture_backend/config"
	"github.com/dzfacture/facture_backend/utils"
)

// WebhookSubscription is an external endpoint that receives outbox events.
// Deliveries are signed with the subscription secret.
type WebhookSubscription struct {
	ID         int       `gorm:"primaryKey" json:"id"`
	BusinessId string    `gorm:"index;size:36;not null" json:"business_id"`
	Url        string    `gorm:"size:500;not null" json:"url"`
	Secret     string    `gorm:"size:100" json:"-"`
	IsActive   *bool     `gorm:"default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewWebhookSubscription struct {
	Url    string `json:"url" binding:"required,url"`
	Secret string `json:"secret"`
}

func CreateWebhookSubscription(ctx context.Context, input *NewWebhookSubscription) (*WebhookSubscription, error) {
	db := config.GetDB()

	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}

	subscription := WebhookSubscription{
		BusinessId: businessId,
		Url:        input.Url,
		Secret:     input.Secret,
		IsActive:   utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&subscription).Error; err != nil {
		return nil, err
	}
	return &subscription, nil
}

func DeleteWebhookSubscription(ctx context.Context, id int) error {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return err
	}
	subscription, err := utils.FetchModel[WebhookSubscription](ctx, businessId, id)
	if err != nil {
		return err
	}
	db := config.GetDB()
	return db.WithContext(ctx).Delete(&WebhookSubscription{}, subscription.ID).Error
}

func GetWebhookSubscriptionsAll(ctx context.Context) ([]*WebhookSubscription, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchAllModels[WebhookSubscription](ctx, businessId)
}

// ActiveWebhookSubscriptions is used by the dispatcher, which runs outside
// a request context.
func ActiveWebhookSubscriptions(ctx context.Context, businessId string) ([]*WebhookSubscription, error) {
	db := config.GetDB()
	var subscriptions []*WebhookSubscription
	err := db.WithContext(ctx).
		Where("business_id = ? AND is_active = ?", businessId, true).
		Find(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}
