package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"bitbucket.org/storeline/retail_backend/config"
	"bitbucket.org/storeline/retail_backend/models"
	"bitbucket.org/storeline/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Actor is the authenticated employee a workflow runs on behalf of.
type Actor struct {
	UserId   int
	UserName string
	Email    string
	OwnerId  string
}

// OrderLine is one requested purchase line as it arrives on the wire. Price
// is the locale-formatted amount string.
type OrderLine struct {
	SupplierId int    `json:"supplier_id"`
	ProductId  int    `json:"product_id" binding:"required"`
	Price      string `json:"price" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required,gt=0"`
	Status     string `json:"status"`
}

// SaveOrderRequest groups lines by supplier id (stringified, as the client
// sends it).
type SaveOrderRequest struct {
	DataForm map[string][]OrderLine `json:"dataForm" binding:"required"`
	Tax      string                 `json:"tax"`
}

// SaveOrderResult reports the created orders and the notification mails
// queued for dispatch.
type SaveOrderResult struct {
	OrderIds       []int `json:"order_ids"`
	EmailOutboxIds []int `json:"email_outbox_ids"`
}

type parsedLine struct {
	ProductId int
	Price     decimal.Decimal
	Quantity  int
	Status    models.OrderDetailStatus
}

var hundred = decimal.NewFromInt(100)

func parseLineStatus(s string) (models.OrderDetailStatus, error) {
	switch models.OrderDetailStatus(s) {
	case models.OrderDetailStatusPending, "":
		return models.OrderDetailStatusPending, nil
	case models.OrderDetailStatusDeliveried:
		return models.OrderDetailStatusDeliveried, nil
	default:
		return "", fmt.Errorf("invalid line status %q", s)
	}
}

// ComputeGeneralStatus rolls line statuses up to the order: pending while
// any line still is.
func ComputeGeneralStatus(lines []parsedLine) models.OrderStatus {
	for _, l := range lines {
		if l.Status == models.OrderDetailStatusPending {
			return models.OrderStatusPending
		}
	}
	return models.OrderStatusDeliveried
}

// ComputeOrderAmount totals the tax-inclusive cost of the lines. Each line
// is floored to whole currency units before summing.
func ComputeOrderAmount(lines []parsedLine, tax decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(tax.Div(hundred))
	total := decimal.Zero
	for _, l := range lines {
		line := l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))).Mul(factor).Floor()
		total = total.Add(line)
	}
	return total
}

// RenderSupplierEmail builds the purchase notification sent to a supplier.
// The order id is the persisted one, so the mail always references the row
// the supplier will be asked about.
func RenderSupplierEmail(supplierName string, orderId int, lines []parsedLine, requesterEmail string) (subject string, body string) {
	subject = fmt.Sprintf("Purchase order #%d", orderId)

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", supplierName)
	fmt.Fprintf(&b, "We would like to order the following items (order #%d):\n\n", orderId)
	for _, l := range lines {
		fmt.Fprintf(&b, "- product %d: %d x %s\n", l.ProductId, l.Quantity, utils.FormatMoney(l.Price))
	}
	fmt.Fprintf(&b, "\nPlease confirm availability and delivery date.\n")
	fmt.Fprintf(&b, "Contact: %s\n", requesterEmail)
	return subject, b.String()
}

// SaveOrderHistory creates one purchase order per supplier group, all inside
// a single transaction. Supplier notification mails are written to the email
// outbox on the same transaction, so an abort leaves no orphan mail behind.
// Groups are walked in sorted key order to keep row ids and logs stable.
func SaveOrderHistory(ctx context.Context, actor Actor, req *SaveOrderRequest) (*SaveOrderResult, error) {

	db := config.GetDB()
	logger := config.GetLogger()

	tax, err := utils.ParseMoney(req.Tax)
	if err != nil {
		return nil, fmt.Errorf("invalid tax: %w", err)
	}

	if len(req.DataForm) == 0 {
		return nil, errors.New("no order lines")
	}

	// parse and validate everything before touching the database
	groups := make(map[int][]parsedLine, len(req.DataForm))
	keys := make([]int, 0, len(req.DataForm))
	for key, lines := range req.DataForm {
		supplierId, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("invalid supplier id %q", key)
		}
		if len(lines) == 0 {
			return nil, fmt.Errorf("supplier %d has no lines", supplierId)
		}
		parsed := make([]parsedLine, 0, len(lines))
		for _, l := range lines {
			price, err := utils.ParseMoney(l.Price)
			if err != nil {
				return nil, fmt.Errorf("invalid price for product %d: %w", l.ProductId, err)
			}
			status, err := parseLineStatus(l.Status)
			if err != nil {
				return nil, err
			}
			parsed = append(parsed, parsedLine{
				ProductId: l.ProductId,
				Price:     price,
				Quantity:  l.Quantity,
				Status:    status,
			})
		}
		groups[supplierId] = parsed
		keys = append(keys, supplierId)
	}
	slices.Sort(keys)

	result := &SaveOrderResult{}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, supplierId := range keys {
			lines := groups[supplierId]

			var supplier models.Supplier
			if err := tx.Where("owner_id = ?", actor.OwnerId).First(&supplier, supplierId).Error; err != nil {
				return fmt.Errorf("supplier %d not found", supplierId)
			}
			for _, l := range lines {
				var count int64
				if err := tx.Model(&models.Product{}).Where("owner_id = ? AND id = ?", actor.OwnerId, l.ProductId).Count(&count).Error; err != nil {
					return err
				}
				if count == 0 {
					return fmt.Errorf("product %d not found", l.ProductId)
				}
			}

			order := models.OrderHistory{
				OwnerId:       actor.OwnerId,
				SupplierId:    supplierId,
				GeneralStatus: ComputeGeneralStatus(lines),
				Amount:        ComputeOrderAmount(lines, tax),
				Tax:           tax,
			}
			if err := tx.Create(&order).Error; err != nil {
				return err
			}
			result.OrderIds = append(result.OrderIds, order.ID)

			if supplier.Email != "" {
				subject, body := RenderSupplierEmail(supplier.Name, order.ID, lines, actor.Email)
				record := models.EmailOutboxRecord{
					OwnerId:       actor.OwnerId,
					ToAddress:     supplier.Email,
					Subject:       subject,
					Body:          body,
					ReferenceType: "order_history",
					ReferenceId:   order.ID,
					CorrelationId: correlationId,
				}
				if err := models.QueueEmail(ctx, tx, &record); err != nil {
					return err
				}
				result.EmailOutboxIds = append(result.EmailOutboxIds, record.ID)
			}

			details := make([]models.OrderDetailHistory, 0, len(lines))
			for _, l := range lines {
				details = append(details, models.OrderDetailHistory{
					OwnerId:   actor.OwnerId,
					OrderId:   order.ID,
					ProductId: l.ProductId,
					Price:     l.Price,
					Quantity:  l.Quantity,
					Status:    l.Status,
				})
			}
			if err := tx.Create(&details).Error; err != nil {
				return err
			}

			logs := make([]models.LoggingOrder, 0, len(details))
			for i, d := range details {
				status := models.LoggingStatusCreate
				if lines[i].Status == models.OrderDetailStatusDeliveried {
					status = models.LoggingStatusDeliveried
				}
				logs = append(logs, models.LoggingOrder{
					OwnerId:       actor.OwnerId,
					OrderId:       order.ID,
					OrderDetailId: d.ID,
					Status:        status,
					UserId:        actor.UserId,
					UserName:      actor.UserName,
					Tax:           tax,
					Details:       fmt.Sprintf("product %d x%d at %s", d.ProductId, d.Quantity, utils.FormatMoney(d.Price)),
				})
			}
			if err := tx.Create(&logs).Error; err != nil {
				return err
			}

			for _, l := range lines {
				if l.Status != models.OrderDetailStatusDeliveried {
					continue
				}
				if err := models.AddWarehouseStock(ctx, tx, actor.OwnerId, l.ProductId, l.Quantity); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "workflow", "SaveOrderHistory", "transaction", req, err)
		return nil, err
	}

	return result, nil
}
