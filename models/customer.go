package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/storeline/retail_backend/config"
	"bitbucket.org/storeline/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Customer is keyed by phone within an owner. Rate counts purchases, Money is
// cumulative spend; both are only ever mutated through ApplyPurchaseStats.
type Customer struct {
	ID                int             `gorm:"primary_key" json:"id"`
	OwnerId           string          `gorm:"index;not null" json:"owner_id"`
	Phone             string          `gorm:"index;size:20;not null" json:"phone" binding:"required"`
	Name              string          `gorm:"size:255" json:"name"`
	Email             string          `gorm:"size:255" json:"email"`
	Address           string          `gorm:"type:text" json:"address"`
	Rate              int             `gorm:"not null;default:0" json:"rate"`
	Money             decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"money"`
	FirstPurchaseDate *time.Time      `json:"first_purchase_date"`
	LastPurchaseDate  *time.Time      `json:"last_purchase_date"`
	CreatorId         int             `gorm:"index" json:"creator_id"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Phone   string `json:"phone" binding:"required"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

func (c *Customer) diffMap() map[string]any {
	return map[string]any{
		"phone":   c.Phone,
		"name":    c.Name,
		"email":   c.Email,
		"address": c.Address,
	}
}

func CreateCustomer(ctx context.Context, ownerId string, employeeId int, input *NewCustomer) (*Customer, error) {

	db := config.GetDB()

	if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
		return nil, err
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email address")
	}
	if err := utils.ValidateUnique[Customer](ctx, ownerId, "phone", input.Phone, 0); err != nil {
		return nil, err
	}

	customer := Customer{
		OwnerId:   ownerId,
		Phone:     input.Phone,
		Name:      input.Name,
		Email:     strings.ToLower(input.Email),
		Address:   input.Address,
		CreatorId: employeeId,
	}
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		if utils.IsDuplicateKeyErr(err) {
			return nil, errors.New("duplicate phone")
		}
		return nil, err
	}

	recordCustomerHistory(ctx, ownerId, customer.ID, employeeId, customer.Phone, HistoryActionCreate, "")
	return &customer, nil
}

func UpdateCustomer(ctx context.Context, ownerId string, employeeId int, id int, input *NewCustomer) (*Customer, error) {

	db := config.GetDB()

	customer, err := utils.FetchModel[Customer](ctx, ownerId, id)
	if err != nil {
		return nil, err
	}

	if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
		return nil, err
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email address")
	}
	if err := utils.ValidateUnique[Customer](ctx, ownerId, "phone", input.Phone, id); err != nil {
		return nil, err
	}

	before := customer.diffMap()

	customer.Phone = input.Phone
	customer.Name = input.Name
	customer.Email = strings.ToLower(input.Email)
	customer.Address = input.Address

	if err := db.WithContext(ctx).Save(customer).Error; err != nil {
		return nil, err
	}

	if details := FieldDiffs(before, customer.diffMap()); details != "" {
		recordCustomerHistory(ctx, ownerId, customer.ID, employeeId, customer.Phone, HistoryActionUpdate, details)
	}
	return customer, nil
}

func DeleteCustomer(ctx context.Context, ownerId string, employeeId int, id int) (*Customer, error) {

	db := config.GetDB()

	customer, err := utils.FetchModel[Customer](ctx, ownerId, id)
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Delete(customer).Error; err != nil {
		return nil, err
	}

	recordCustomerHistory(ctx, ownerId, customer.ID, employeeId, customer.Phone, HistoryActionDelete, "")
	return customer, nil
}

func GetCustomer(ctx context.Context, ownerId string, id int) (*Customer, error) {
	return utils.FetchModel[Customer](ctx, ownerId, id)
}

func ListCustomers(ctx context.Context, ownerId string) ([]*Customer, error) {
	return utils.FetchAllModels[Customer](ctx, ownerId)
}

// FindCustomerByPhone returns nil without error when no customer matches.
func FindCustomerByPhone(ctx context.Context, tx *gorm.DB, ownerId string, phone string) (*Customer, error) {
	var customer Customer
	err := tx.WithContext(ctx).Where("owner_id = ? AND phone = ?", ownerId, phone).First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

// ApplyPurchaseStats records one completed sale against the customer in a
// single UPDATE. The read-modify-write pattern loses concurrent updates, so
// every mutation happens inside SQL expressions.
func ApplyPurchaseStats(ctx context.Context, tx *gorm.DB, ownerId string, customerId int, amount decimal.Decimal) error {
	result := tx.WithContext(ctx).Model(&Customer{}).
		Where("owner_id = ? AND id = ?", ownerId, customerId).
		Updates(map[string]interface{}{
			"rate":                gorm.Expr("rate + 1"),
			"money":               gorm.Expr("money + ?", amount),
			"first_purchase_date": gorm.Expr("COALESCE(first_purchase_date, NOW())"),
			"last_purchase_date":  gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}
