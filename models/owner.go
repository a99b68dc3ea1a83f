package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/storeline/retail_backend/config"
	"bitbucket.org/storeline/retail_backend/utils"
	"github.com/google/uuid"
)

// Owner is the tenant record every other entity is scoped under.
type Owner struct {
	ID        uuid.UUID `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	Email     string    `gorm:"size:255" json:"email"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Address   string    `gorm:"type:text" json:"address"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOwner struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func CreateOwner(ctx context.Context, input *NewOwner) (*Owner, error) {

	db := config.GetDB()

	if !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email address")
	}

	var count int64
	if err := db.WithContext(ctx).Model(&Owner{}).Where("email = ?", strings.ToLower(input.Email)).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("email already registered")
	}

	owner := Owner{
		ID:       uuid.New(),
		Name:     input.Name,
		Email:    strings.ToLower(input.Email),
		Phone:    input.Phone,
		Address:  input.Address,
		IsActive: utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&owner).Error; err != nil {
		return nil, err
	}
	return &owner, nil
}

func GetOwnerById(ctx context.Context, ownerId string) (*Owner, error) {
	db := config.GetDB()
	var owner Owner
	if err := db.WithContext(ctx).Where("id = ?", ownerId).First(&owner).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &owner, nil
}
