package models

import (
	"context"

	"bitbucket.org/storeline/retail_backend/utils"
	"gorm.io/gorm"
)

// Stock mutations never go through read-modify-write; every change is a
// single SQL expression so concurrent sales and deliveries cannot lose
// updates.

// AddWarehouseStock records qty units arriving from a supplier.
func AddWarehouseStock(ctx context.Context, tx *gorm.DB, ownerId string, productId int, qty int) error {
	result := tx.WithContext(ctx).Model(&Product{}).
		Where("owner_id = ? AND id = ?", ownerId, productId).
		Update("stock_in_warehouse", gorm.Expr("stock_in_warehouse + ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

// TakeShelfStock removes qty units sold from the shelf, clamping at zero,
// and bumps the product's popularity counter.
func TakeShelfStock(ctx context.Context, tx *gorm.DB, ownerId string, productId int, qty int) error {
	result := tx.WithContext(ctx).Model(&Product{}).
		Where("owner_id = ? AND id = ?", ownerId, productId).
		Updates(map[string]interface{}{
			"stock_in_shelf": gorm.Expr("GREATEST(stock_in_shelf - ?, 0)", qty),
			"rate":           gorm.Expr("rate + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

// MoveStockToShelf restocks the shelf from the warehouse. The moved quantity
// is capped at what the warehouse actually holds.
func MoveStockToShelf(ctx context.Context, tx *gorm.DB, ownerId string, productId int, qty int) error {
	result := tx.WithContext(ctx).Model(&Product{}).
		Where("owner_id = ? AND id = ?", ownerId, productId).
		Updates(map[string]interface{}{
			"stock_in_shelf":     gorm.Expr("stock_in_shelf + LEAST(stock_in_warehouse, ?)", qty),
			"stock_in_warehouse": gorm.Expr("GREATEST(stock_in_warehouse - ?, 0)", qty),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}
