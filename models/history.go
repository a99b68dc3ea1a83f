package models

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"bitbucket.org/storeline/retail_backend/config"
)

// Change-history rows are append-only. One row per create/update/delete,
// with a human-readable description of what changed. Subject snapshots the
// entity's display key (name or phone) at the time of the action so the row
// stays readable after the entity is gone.

type ProductChangeHistory struct {
	ID         int           `gorm:"primary_key" json:"id"`
	OwnerId    string        `gorm:"index;not null" json:"owner_id"`
	ProductId  int           `gorm:"index;not null" json:"product_id"`
	EmployeeId int           `gorm:"index" json:"employee_id"`
	Subject    string        `gorm:"size:255" json:"subject"`
	Action     HistoryAction `gorm:"size:20;not null" json:"action"`
	Details    string        `gorm:"type:text" json:"details"`
	CreatedAt  time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

type SupplierChangeHistory struct {
	ID         int           `gorm:"primary_key" json:"id"`
	OwnerId    string        `gorm:"index;not null" json:"owner_id"`
	SupplierId int           `gorm:"index;not null" json:"supplier_id"`
	EmployeeId int           `gorm:"index" json:"employee_id"`
	Subject    string        `gorm:"size:255" json:"subject"`
	Action     HistoryAction `gorm:"size:20;not null" json:"action"`
	Details    string        `gorm:"type:text" json:"details"`
	CreatedAt  time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

type CustomerChangeHistory struct {
	ID         int           `gorm:"primary_key" json:"id"`
	OwnerId    string        `gorm:"index;not null" json:"owner_id"`
	CustomerId int           `gorm:"index;not null" json:"customer_id"`
	EmployeeId int           `gorm:"index" json:"employee_id"`
	Subject    string        `gorm:"size:255" json:"subject"`
	Action     HistoryAction `gorm:"size:20;not null" json:"action"`
	Details    string        `gorm:"type:text" json:"details"`
	CreatedAt  time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

// FieldDiffs renders "field changed from 'old' to 'new'" for every key whose
// value differs between old and new, joined with ", ". Keys are walked in
// sorted order so the output is stable. Keys listed in excluded are skipped.
func FieldDiffs(old map[string]any, new map[string]any, excluded ...string) string {

	keys := make([]string, 0, len(new))
	for k := range new {
		if slices.Contains(excluded, k) {
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var parts []string
	for _, k := range keys {
		before := fmt.Sprintf("%v", old[k])
		after := fmt.Sprintf("%v", new[k])
		if before == after {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s changed from '%s' to '%s'", k, before, after))
	}
	return strings.Join(parts, ", ")
}

func recordProductHistory(ctx context.Context, ownerId string, productId int, employeeId int, subject string, action HistoryAction, details string) {
	db := config.GetDB()
	row := ProductChangeHistory{
		OwnerId:    ownerId,
		ProductId:  productId,
		EmployeeId: employeeId,
		Subject:    subject,
		Action:     action,
		Details:    details,
	}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "recordProductHistory", "create", row, err)
	}
}

func recordSupplierHistory(ctx context.Context, ownerId string, supplierId int, employeeId int, subject string, action HistoryAction, details string) {
	db := config.GetDB()
	row := SupplierChangeHistory{
		OwnerId:    ownerId,
		SupplierId: supplierId,
		EmployeeId: employeeId,
		Subject:    subject,
		Action:     action,
		Details:    details,
	}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "recordSupplierHistory", "create", row, err)
	}
}

func recordCustomerHistory(ctx context.Context, ownerId string, customerId int, employeeId int, subject string, action HistoryAction, details string) {
	db := config.GetDB()
	row := CustomerChangeHistory{
		OwnerId:    ownerId,
		CustomerId: customerId,
		EmployeeId: employeeId,
		Subject:    subject,
		Action:     action,
		Details:    details,
	}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "recordCustomerHistory", "create", row, err)
	}
}

func GetProductHistory(ctx context.Context, ownerId string, productId int) ([]*ProductChangeHistory, error) {
	db := config.GetDB()
	var rows []*ProductChangeHistory
	err := db.WithContext(ctx).
		Where("owner_id = ? AND product_id = ?", ownerId, productId).
		Order("created_at DESC").Find(&rows).Error
	return rows, err
}

func GetSupplierHistory(ctx context.Context, ownerId string, supplierId int) ([]*SupplierChangeHistory, error) {
	db := config.GetDB()
	var rows []*SupplierChangeHistory
	err := db.WithContext(ctx).
		Where("owner_id = ? AND supplier_id = ?", ownerId, supplierId).
		Order("created_at DESC").Find(&rows).Error
	return rows, err
}

func GetCustomerHistory(ctx context.Context, ownerId string, customerId int) ([]*CustomerChangeHistory, error) {
	db := config.GetDB()
	var rows []*CustomerChangeHistory
	err := db.WithContext(ctx).
		Where("owner_id = ? AND customer_id = ?", ownerId, customerId).
		Order("created_at DESC").Find(&rows).Error
	return rows, err
}
