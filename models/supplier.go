package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/storeline/retail_backend/config"
	"bitbucket.org/storeline/retail_backend/utils"
)

type Supplier struct {
	ID        int       `gorm:"primary_key" json:"id"`
	OwnerId   string    `gorm:"index;not null" json:"owner_id"`
	Name      string    `gorm:"index;size:255;not null" json:"name" binding:"required"`
	Phone     string    `gorm:"index;size:20;not null" json:"phone" binding:"required"`
	Email     string    `gorm:"size:255" json:"email"`
	Address   string    `gorm:"type:text" json:"address"`
	CreatorId int       `gorm:"index" json:"creator_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone" binding:"required"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

func (s *Supplier) diffMap() map[string]any {
	return map[string]any{
		"name":    s.Name,
		"phone":   s.Phone,
		"email":   s.Email,
		"address": s.Address,
	}
}

func CreateSupplier(ctx context.Context, ownerId string, employeeId int, input *NewSupplier) (*Supplier, error) {

	db := config.GetDB()

	if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
		return nil, err
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email address")
	}
	if err := utils.ValidateUnique[Supplier](ctx, ownerId, "phone", input.Phone, 0); err != nil {
		return nil, err
	}

	supplier := Supplier{
		OwnerId:   ownerId,
		Name:      input.Name,
		Phone:     input.Phone,
		Email:     strings.ToLower(input.Email),
		Address:   input.Address,
		CreatorId: employeeId,
	}
	if err := db.WithContext(ctx).Create(&supplier).Error; err != nil {
		if utils.IsDuplicateKeyErr(err) {
			return nil, errors.New("duplicate phone")
		}
		return nil, err
	}

	recordSupplierHistory(ctx, ownerId, supplier.ID, employeeId, supplier.Phone, HistoryActionCreate, "")
	return &supplier, nil
}

func UpdateSupplier(ctx context.Context, ownerId string, employeeId int, id int, input *NewSupplier) (*Supplier, error) {

	db := config.GetDB()

	supplier, err := utils.FetchModel[Supplier](ctx, ownerId, id)
	if err != nil {
		return nil, err
	}

	if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
		return nil, err
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email address")
	}
	if err := utils.ValidateUnique[Supplier](ctx, ownerId, "phone", input.Phone, id); err != nil {
		return nil, err
	}

	before := supplier.diffMap()

	supplier.Name = input.Name
	supplier.Phone = input.Phone
	supplier.Email = strings.ToLower(input.Email)
	supplier.Address = input.Address

	if err := db.WithContext(ctx).Save(supplier).Error; err != nil {
		return nil, err
	}

	if details := FieldDiffs(before, supplier.diffMap()); details != "" {
		recordSupplierHistory(ctx, ownerId, supplier.ID, employeeId, supplier.Phone, HistoryActionUpdate, details)
	}
	return supplier, nil
}

func DeleteSupplier(ctx context.Context, ownerId string, employeeId int, id int) (*Supplier, error) {

	db := config.GetDB()

	supplier, err := utils.FetchModel[Supplier](ctx, ownerId, id)
	if err != nil {
		return nil, err
	}

	// block deletion while open purchase orders still reference the supplier
	pending, err := utils.ResourceCountWhere[OrderHistory](ctx, ownerId, "supplier_id = ? AND general_status = ?", id, OrderStatusPending)
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, errors.New("supplier has pending orders")
	}

	if err := db.WithContext(ctx).Delete(supplier).Error; err != nil {
		return nil, err
	}

	recordSupplierHistory(ctx, ownerId, supplier.ID, employeeId, supplier.Phone, HistoryActionDelete, "")
	return supplier, nil
}

func GetSupplier(ctx context.Context, ownerId string, id int) (*Supplier, error) {
	return utils.FetchModel[Supplier](ctx, ownerId, id)
}

func ListSuppliers(ctx context.Context, ownerId string) ([]*Supplier, error) {
	return utils.FetchAllModels[Supplier](ctx, ownerId)
}
