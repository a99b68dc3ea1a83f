package models

import (
	"context"
	"time"

	"bitbucket.org/storeline/retail_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderHistory is one purchase order against a supplier. GeneralStatus rolls
// up the detail statuses: pending while any line is pending.
type OrderHistory struct {
	ID            int             `gorm:"primary_key" json:"id"`
	OwnerId       string          `gorm:"index;not null" json:"owner_id"`
	SupplierId    int             `gorm:"index;not null" json:"supplier_id"`
	GeneralStatus OrderStatus     `gorm:"index;size:20;not null" json:"general_status"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"amount"`
	Tax           decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"tax"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type OrderDetailHistory struct {
	ID        int               `gorm:"primary_key" json:"id"`
	OwnerId   string            `gorm:"index;not null" json:"owner_id"`
	OrderId   int               `gorm:"index;not null" json:"order_id"`
	ProductId int               `gorm:"index;not null" json:"product_id"`
	Price     decimal.Decimal   `gorm:"type:decimal(20,6);not null" json:"price"`
	Quantity  int               `gorm:"not null" json:"quantity"`
	Status    OrderDetailStatus `gorm:"index;size:20;not null" json:"status"`
	CreatedAt time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// PendingOrderRow is the listing shape for the purchasing screen: the order
// joined with its supplier's display fields.
type PendingOrderRow struct {
	OrderId       int             `json:"order_id"`
	SupplierId    int             `json:"supplier_id"`
	SupplierName  string          `json:"supplier_name"`
	SupplierPhone string          `json:"supplier_phone"`
	GeneralStatus OrderStatus     `json:"general_status"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"created_at"`
}

func GetOrderHistoryById(ctx context.Context, tx *gorm.DB, ownerId string, id int) (*OrderHistory, error) {
	var order OrderHistory
	err := tx.WithContext(ctx).Where("owner_id = ?", ownerId).First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func GetPendingDetails(ctx context.Context, tx *gorm.DB, ownerId string, orderId int) ([]*OrderDetailHistory, error) {
	var details []*OrderDetailHistory
	err := tx.WithContext(ctx).
		Where("owner_id = ? AND order_id = ? AND status = ?", ownerId, orderId, OrderDetailStatusPending).
		Order("id").Find(&details).Error
	return details, err
}

// ListPendingOrders returns open purchase orders newest-first with supplier
// contact fields joined in.
func ListPendingOrders(ctx context.Context, ownerId string) ([]*PendingOrderRow, error) {

	db := config.GetDB()
	var rows []*PendingOrderRow

	err := db.WithContext(ctx).Model(&OrderHistory{}).
		Select("order_histories.id AS order_id, order_histories.supplier_id, suppliers.name AS supplier_name, suppliers.phone AS supplier_phone, order_histories.general_status, order_histories.amount, order_histories.created_at").
		Joins("JOIN suppliers ON suppliers.id = order_histories.supplier_id AND suppliers.owner_id = order_histories.owner_id").
		Where("order_histories.owner_id = ? AND order_histories.general_status = ?", ownerId, OrderStatusPending).
		Order("order_histories.created_at DESC").
		Scan(&rows).Error
	return rows, err
}
