package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/storeline/retail_backend/config"
	"bitbucket.org/storeline/retail_backend/models"
	"bitbucket.org/storeline/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BillItemInput struct {
	ProductId int    `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	Price     string `json:"price" binding:"required"`
	Discount  string `json:"discount"`
}

type CreateBillRequest struct {
	CustomerPhone string          `json:"customer_phone"`
	CustomerName  string          `json:"customer_name"`
	OrderDate     time.Time       `json:"order_date"`
	Items         []BillItemInput `json:"items" binding:"required,min=1"`
	Discount      string          `json:"discount"`
	Vat           string          `json:"vat"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"notes"`
}

type billItem struct {
	ProductId int
	Name      string
	Quantity  int
	Price     decimal.Decimal
	Discount  decimal.Decimal
}

func (i billItem) total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity))).Sub(i.Discount)
}

// ComputeBillTotal sums the item totals, subtracts the bill discount, then
// applies VAT. The result is floored to whole currency units and never
// negative; customer money only ever accumulates.
func ComputeBillTotal(items []billItem, discount decimal.Decimal, vat decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, i := range items {
		total = total.Add(i.total())
	}
	total = total.Sub(discount)
	total = total.Mul(decimal.NewFromInt(1).Add(vat.Div(hundred)))
	if total.IsNegative() {
		return decimal.Zero
	}
	return total.Floor()
}

// validateBillAmounts rejects discounts larger than what they discount, per
// line and for the bill as a whole.
func validateBillAmounts(items []billItem, discount decimal.Decimal) error {
	subtotal := decimal.Zero
	for _, i := range items {
		lineTotal := i.total()
		if lineTotal.IsNegative() {
			return fmt.Errorf("discount exceeds line total for product %d", i.ProductId)
		}
		subtotal = subtotal.Add(lineTotal)
	}
	if discount.GreaterThan(subtotal) {
		return fmt.Errorf("discount %s exceeds bill subtotal %s", utils.FormatMoney(discount), utils.FormatMoney(subtotal))
	}
	return nil
}

// CreateBill records one sale. The bill, the customer stats, and the shelf
// stock all move in a single transaction. There is no idempotency key: the
// same request posted twice produces two bills.
func CreateBill(ctx context.Context, actor Actor, req *CreateBillRequest) (*models.Bill, error) {

	db := config.GetDB()
	logger := config.GetLogger()

	discount, err := utils.ParseMoney(req.Discount)
	if err != nil {
		return nil, fmt.Errorf("invalid discount: %w", err)
	}
	vat, err := utils.ParseMoney(req.Vat)
	if err != nil {
		return nil, fmt.Errorf("invalid vat: %w", err)
	}

	items := make([]billItem, 0, len(req.Items))
	for _, it := range req.Items {
		price, err := utils.ParseMoney(it.Price)
		if err != nil {
			return nil, fmt.Errorf("invalid price for product %d: %w", it.ProductId, err)
		}
		itemDiscount, err := utils.ParseMoney(it.Discount)
		if err != nil {
			return nil, fmt.Errorf("invalid discount for product %d: %w", it.ProductId, err)
		}
		items = append(items, billItem{
			ProductId: it.ProductId,
			Quantity:  it.Quantity,
			Price:     price,
			Discount:  itemDiscount,
		})
	}

	if err := validateBillAmounts(items, discount); err != nil {
		return nil, err
	}

	orderDate := req.OrderDate
	if orderDate.IsZero() {
		orderDate = time.Now()
	}

	var bill *models.Bill
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		// resolve product names from the catalog, never from the client
		for i := range items {
			var product models.Product
			if err := tx.Where("owner_id = ?", actor.OwnerId).First(&product, items[i].ProductId).Error; err != nil {
				return fmt.Errorf("product %d not found", items[i].ProductId)
			}
			items[i].Name = product.Name
		}

		var customerId *int
		if req.CustomerPhone != "" {
			customer, err := models.FindCustomerByPhone(ctx, tx, actor.OwnerId, req.CustomerPhone)
			if err != nil {
				return err
			}
			if customer == nil {
				customer = &models.Customer{
					OwnerId:   actor.OwnerId,
					Phone:     req.CustomerPhone,
					Name:      req.CustomerName,
					CreatorId: actor.UserId,
				}
				if err := tx.Create(customer).Error; err != nil {
					return err
				}
			}
			customerId = &customer.ID
		}

		total := ComputeBillTotal(items, discount, vat)

		bill = &models.Bill{
			OwnerId:       actor.OwnerId,
			CreatorId:     actor.UserId,
			CustomerId:    customerId,
			OrderDate:     orderDate,
			TotalAmount:   total,
			Discount:      discount,
			Vat:           vat,
			PaymentMethod: req.PaymentMethod,
			Notes:         req.Notes,
		}
		if err := tx.Create(bill).Error; err != nil {
			return err
		}

		billItems := make([]models.BillItem, 0, len(items))
		for _, i := range items {
			billItems = append(billItems, models.BillItem{
				OwnerId:     actor.OwnerId,
				BillId:      bill.ID,
				ProductId:   i.ProductId,
				Name:        i.Name,
				Quantity:    i.Quantity,
				Price:       i.Price,
				Discount:    i.Discount,
				TotalAmount: i.total(),
			})
		}
		if err := tx.Create(&billItems).Error; err != nil {
			return err
		}
		bill.Items = billItems

		if customerId != nil {
			if err := models.ApplyPurchaseStats(ctx, tx, actor.OwnerId, *customerId, total); err != nil {
				return err
			}
		}

		for _, i := range items {
			if err := models.TakeShelfStock(ctx, tx, actor.OwnerId, i.ProductId, i.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "workflow", "CreateBill", "transaction", req, err)
		return nil, err
	}

	return bill, nil
}