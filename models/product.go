package models

import (
	"context"
	"time"

	"bitbucket.org/storeline/retail_backend/config"
	"bitbucket.org/storeline/retail_backend/utils"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID               int             `gorm:"primary_key" json:"id"`
	OwnerId          string          `gorm:"index;not null" json:"owner_id"`
	Sku              string          `gorm:"index;size:100;not null" json:"sku" binding:"required"`
	Name             string          `gorm:"index;size:255;not null" json:"name" binding:"required"`
	Category         string          `gorm:"size:100" json:"category"`
	Brand            string          `gorm:"size:100" json:"brand"`
	Description      string          `gorm:"type:text" json:"description"`
	Price            decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"price"`
	PurchasePrice    decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"purchase_price"`
	StockInShelf     int             `gorm:"not null;default:0" json:"stock_in_shelf"`
	StockInWarehouse int             `gorm:"not null;default:0" json:"stock_in_warehouse"`
	Rate             int             `gorm:"not null;default:0" json:"rate"`
	SupplierId       int             `gorm:"index" json:"supplier_id"`
	ImageUrl         string          `gorm:"size:500" json:"image_url"`
	Unit             string          `gorm:"size:50" json:"unit"`
	Location         string          `gorm:"size:100" json:"location"`
	Notes            string          `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Sku              string `json:"sku" binding:"required"`
	Name             string `json:"name" binding:"required"`
	Category         string `json:"category"`
	Brand            string `json:"brand"`
	Description      string `json:"description"`
	Price            string `json:"price" binding:"required"`
	PurchasePrice    string `json:"purchase_price"`
	StockInShelf     int    `json:"stock_in_shelf" binding:"gte=0"`
	StockInWarehouse int    `json:"stock_in_warehouse" binding:"gte=0"`
	SupplierId       int    `json:"supplier_id"`
	ImageUrl         string `json:"image_url"`
	Unit             string `json:"unit"`
	Location         string `json:"location"`
	Notes            string `json:"notes"`
}

// audit snapshot of the fields an operator can edit
func (p *Product) diffMap() map[string]any {
	return map[string]any{
		"sku":            p.Sku,
		"name":           p.Name,
		"category":       p.Category,
		"brand":          p.Brand,
		"description":    p.Description,
		"price":          utils.FormatMoney(p.Price),
		"purchase_price": utils.FormatMoney(p.PurchasePrice),
		"supplier_id":    p.SupplierId,
		"unit":           p.Unit,
		"location":       p.Location,
		"notes":          p.Notes,
	}
}

func CreateProduct(ctx context.Context, ownerId string, employeeId int, input *NewProduct) (*Product, error) {

	db := config.GetDB()

	if err := utils.ValidateUnique[Product](ctx, ownerId, "sku", input.Sku, 0); err != nil {
		return nil, err
	}
	if input.SupplierId != 0 {
		if err := utils.ValidateResourceId[Supplier](ctx, ownerId, input.SupplierId); err != nil {
			return nil, err
		}
	}

	price, err := utils.ParseMoney(input.Price)
	if err != nil {
		return nil, err
	}
	purchasePrice, err := utils.ParseMoney(input.PurchasePrice)
	if err != nil {
		return nil, err
	}

	product := Product{
		OwnerId:          ownerId,
		Sku:              input.Sku,
		Name:             input.Name,
		Category:         input.Category,
		Brand:            input.Brand,
		Description:      input.Description,
		Price:            price,
		PurchasePrice:    purchasePrice,
		StockInShelf:     input.StockInShelf,
		StockInWarehouse: input.StockInWarehouse,
		SupplierId:       input.SupplierId,
		ImageUrl:         input.ImageUrl,
		Unit:             input.Unit,
		Location:         input.Location,
		Notes:            input.Notes,
	}
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}

	recordProductHistory(ctx, ownerId, product.ID, employeeId, product.Name, HistoryActionCreate, "")
	return &product, nil
}

func UpdateProduct(ctx context.Context, ownerId string, employeeId int, id int, input *NewProduct) (*Product, error) {

	db := config.GetDB()

	product, err := utils.FetchModel[Product](ctx, ownerId, id)
	if err != nil {
		return nil, err
	}

	if err := utils.ValidateUnique[Product](ctx, ownerId, "sku", input.Sku, id); err != nil {
		return nil, err
	}
	if input.SupplierId != 0 {
		if err := utils.ValidateResourceId[Supplier](ctx, ownerId, input.SupplierId); err != nil {
			return nil, err
		}
	}

	price, err := utils.ParseMoney(input.Price)
	if err != nil {
		return nil, err
	}
	purchasePrice, err := utils.ParseMoney(input.PurchasePrice)
	if err != nil {
		return nil, err
	}

	before := product.diffMap()

	product.Sku = input.Sku
	product.Name = input.Name
	product.Category = input.Category
	product.Brand = input.Brand
	product.Description = input.Description
	product.Price = price
	product.PurchasePrice = purchasePrice
	product.SupplierId = input.SupplierId
	product.ImageUrl = input.ImageUrl
	product.Unit = input.Unit
	product.Location = input.Location
	product.Notes = input.Notes

	if err := db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, err
	}

	if details := FieldDiffs(before, product.diffMap()); details != "" {
		recordProductHistory(ctx, ownerId, product.ID, employeeId, product.Name, HistoryActionUpdate, details)
	}
	return product, nil
}

func DeleteProduct(ctx context.Context, ownerId string, employeeId int, id int) (*Product, error) {

	db := config.GetDB()

	product, err := utils.FetchModel[Product](ctx, ownerId, id)
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Delete(product).Error; err != nil {
		return nil, err
	}

	recordProductHistory(ctx, ownerId, product.ID, employeeId, product.Name, HistoryActionDelete, "")
	return product, nil
}

func GetProduct(ctx context.Context, ownerId string, id int) (*Product, error) {
	return utils.FetchModel[Product](ctx, ownerId, id)
}

func ListProducts(ctx context.Context, ownerId string) ([]*Product, error) {
	return utils.FetchAllModels[Product](ctx, ownerId)
}
