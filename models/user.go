package models

import (
	"context"
	"errors"
	"time"

	"github.com/dzfacture/facture_backend/config"
	"github.com/dzfacture/facture_backend/utils"
)

type User struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email" binding:"required"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UserAccount links a user to a business. The wider team/role management is
// out of scope; membership is the whole access contract here.
type UserAccount struct {
	UserId     int    `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	BusinessId string `gorm:"primaryKey;size:36;autoIncrement:false" json:"business_id"`
	Role       string `gorm:"size:20;default:Member" json:"role"`
}

type NewUser struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := User{
		Name:     input.Name,
		Email:    input.Email,
		Password: hashed,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserById is not business-scoped: users exist above business membership.
func GetUserById(ctx context.Context, id int) (*User, error) {
	return utils.FetchSingleModel[User](ctx, id)
}

// Authenticate checks credentials and returns a signed bearer token.
func Authenticate(ctx context.Context, email string, password string) (string, error) {
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return "", utils.ErrorUnauthorized
	}
	if err := utils.VerifyPassword(user.Password, password); err != nil {
		return "", utils.ErrorUnauthorized
	}
	return utils.JwtGenerate(user.ID, user.Name)
}

// AddUserToBusiness grants membership.
func AddUserToBusiness(ctx context.Context, userId int, businessId string, role string) error {
	db := config.GetDB()
	account := UserAccount{UserId: userId, BusinessId: businessId, Role: role}
	return db.WithContext(ctx).Save(&account).Error
}

// RequireBusinessAccess is the single auth contract consumed by the engine:
// it returns the Business when the context user is a member, and
// ErrorUnauthorized otherwise. Never retried, always surfaced.
func RequireBusinessAccess(ctx context.Context, businessId string) (*Business, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return nil, utils.ErrorUnauthorized
	}

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&UserAccount{}).
		Where("user_id = ? AND business_id = ?", userId, businessId).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, utils.ErrorUnauthorized
	}

	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.ErrorUnauthorized
		}
		return nil, err
	}
	return business, nil
}
