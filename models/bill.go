package models

import (
	"context"
	"time"

	"bitbucket.org/storeline/retail_backend/config"
	"github.com/shopspring/decimal"
)

// Bill is an immutable record of one sale. There is no update or delete
// path; corrections are new bills.
type Bill struct {
	ID            int             `gorm:"primary_key" json:"id"`
	OwnerId       string          `gorm:"index;not null" json:"owner_id"`
	CreatorId     int             `gorm:"index" json:"creator_id"`
	CustomerId    *int            `gorm:"index" json:"customer_id"`
	OrderDate     time.Time       `gorm:"not null" json:"order_date"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"total_amount"`
	Discount      decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"discount"`
	Vat           decimal.Decimal `gorm:"type:decimal(10,4);not null;default:0" json:"vat"`
	PaymentMethod string          `gorm:"size:50" json:"payment_method"`
	Notes         string          `gorm:"type:text" json:"notes"`
	Items         []BillItem      `gorm:"foreignKey:BillId" json:"items"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type BillItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	OwnerId     string          `gorm:"index;not null" json:"owner_id"`
	BillId      int             `gorm:"index;not null" json:"bill_id"`
	ProductId   int             `gorm:"index;not null" json:"product_id"`
	Name        string          `gorm:"size:255;not null" json:"name"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"price"`
	Discount    decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"discount"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"total_amount"`
}

// ListBills returns bills newest-first with their items, optionally bounded
// by an inclusive date range. Zero times mean unbounded.
func ListBills(ctx context.Context, ownerId string, from time.Time, to time.Time) ([]*Bill, error) {

	db := config.GetDB()
	var bills []*Bill

	dbCtx := db.WithContext(ctx).Preload("Items").Where("owner_id = ?", ownerId)
	if !from.IsZero() {
		dbCtx = dbCtx.Where("order_date >= ?", from)
	}
	if !to.IsZero() {
		dbCtx = dbCtx.Where("order_date <= ?", to)
	}
	err := dbCtx.Order("order_date DESC").Find(&bills).Error
	return bills, err
}
