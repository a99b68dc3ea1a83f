package models

import (
	"context"
	"time"

	"bitbucket.org/storeline/retail_backend/config"
	"github.com/shopspring/decimal"
)

// LoggingOrder is the append-only audit trail of order activity. Rows are
// never updated or deleted.
type LoggingOrder struct {
	ID            int             `gorm:"primary_key" json:"id"`
	OwnerId       string          `gorm:"index;not null" json:"owner_id"`
	OrderId       int             `gorm:"index;not null" json:"order_id"`
	OrderDetailId int             `gorm:"index" json:"order_detail_id"`
	Status        LoggingStatus   `gorm:"size:20;not null" json:"status"`
	UserId        int             `gorm:"index" json:"user_id"`
	UserName      string          `gorm:"size:100" json:"user_name"`
	Details       string          `gorm:"type:text" json:"details"`
	Tax           decimal.Decimal `gorm:"type:decimal(10,4)" json:"tax"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func ListOrderLogs(ctx context.Context, ownerId string, orderId int) ([]*LoggingOrder, error) {
	db := config.GetDB()
	var rows []*LoggingOrder
	err := db.WithContext(ctx).
		Where("owner_id = ? AND order_id = ?", ownerId, orderId).
		Order("created_at").Find(&rows).Error
	return rows, err
}
