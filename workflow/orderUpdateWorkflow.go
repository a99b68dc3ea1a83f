package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bitbucket.org/storeline/retail_backend/config"
	"bitbucket.org/storeline/retail_backend/models"
	"bitbucket.org/storeline/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type UpdateOrderRequest struct {
	OrderId int       `json:"order_id" binding:"required"`
	Status  string    `json:"status" binding:"required"`
	Date    time.Time `json:"date"`
	Total   string    `json:"total"`
	Tax     string    `json:"tax"`
	Notes   string    `json:"notes"`
}

// UpdateOrderResult counts the per-line outcomes. Failed lines are logged
// and left in their previous state; the caller decides whether to retry.
type UpdateOrderResult struct {
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// UpdateOrderHistory moves a pending order to deliveried or Canceled. The
// per-detail writes fan out concurrently and are deliberately best-effort:
// one line failing does not undo the others, and the parent order row is
// updated regardless. Re-submitting the order's current status refreshes the
// snapshot fields (amount, tax, date) and touches nothing else. Returns
// ErrorRecordNotFound when the order does not exist for the owner.
func UpdateOrderHistory(ctx context.Context, actor Actor, req *UpdateOrderRequest) (*UpdateOrderResult, error) {

	db := config.GetDB()
	logger := config.GetLogger()

	if req.Status != string(models.OrderStatusDeliveried) && req.Status != string(models.OrderStatusCanceled) {
		return nil, fmt.Errorf("invalid target status %q", req.Status)
	}

	var newAmount, newTax *decimal.Decimal
	if req.Total != "" {
		v, err := utils.ParseMoney(req.Total)
		if err != nil {
			return nil, fmt.Errorf("invalid total: %w", err)
		}
		newAmount = &v
	}
	if req.Tax != "" {
		v, err := utils.ParseMoney(req.Tax)
		if err != nil {
			return nil, fmt.Errorf("invalid tax: %w", err)
		}
		newTax = &v
	}

	order, err := models.GetOrderHistoryById(ctx, db, actor.OwnerId, req.OrderId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	when := req.Date
	if when.IsZero() {
		when = time.Now()
	}

	parentUpdates := map[string]interface{}{
		"general_status": req.Status,
		"updated_at":     when,
	}
	if newAmount != nil {
		parentUpdates["amount"] = *newAmount
	}
	if newTax != nil {
		parentUpdates["tax"] = *newTax
	}

	if order.GeneralStatus != models.OrderStatusPending {
		if string(order.GeneralStatus) != req.Status {
			return nil, fmt.Errorf("order %d is not pending", order.ID)
		}
		// same status again: refresh the snapshot, leave the lines alone
		err = db.WithContext(ctx).Model(&models.OrderHistory{}).
			Where("owner_id = ? AND id = ?", actor.OwnerId, order.ID).
			Updates(parentUpdates).Error
		if err != nil {
			config.LogError(logger, "workflow", "UpdateOrderHistory", "snapshot", order.ID, err)
			return nil, err
		}
		return &UpdateOrderResult{}, nil
	}

	details, err := models.GetPendingDetails(ctx, db, actor.OwnerId, order.ID)
	if err != nil {
		return nil, err
	}

	detailStatus := models.OrderDetailStatusDeliveried
	logStatus := models.LoggingStatusUpdate
	if req.Status == string(models.OrderStatusCanceled) {
		detailStatus = models.OrderDetailStatusCanceled
		logStatus = models.LoggingStatusDelete
	}

	logTax := order.Tax
	if newTax != nil {
		logTax = *newTax
	}

	result := &UpdateOrderResult{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, detail := range details {
		wg.Add(1)
		go func(detail *models.OrderDetailHistory) {
			defer wg.Done()
			err := applyDetailUpdate(ctx, actor, order, detail, detailStatus, logStatus, when, req.Notes, logTax)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				config.LogError(logger, "workflow", "UpdateOrderHistory", "detail", detail.ID, err)
				return
			}
			result.Updated++
		}(detail)
	}
	wg.Wait()

	// the parent moves even when some lines failed; the logs carry the truth
	err = db.WithContext(ctx).Model(&models.OrderHistory{}).
		Where("owner_id = ? AND id = ?", actor.OwnerId, order.ID).
		Updates(parentUpdates).Error
	if err != nil {
		config.LogError(logger, "workflow", "UpdateOrderHistory", "parent", order.ID, err)
		return nil, err
	}

	return result, nil
}

func applyDetailUpdate(ctx context.Context, actor Actor, order *models.OrderHistory, detail *models.OrderDetailHistory, detailStatus models.OrderDetailStatus, logStatus models.LoggingStatus, when time.Time, notes string, logTax decimal.Decimal) error {

	db := config.GetDB()

	err := db.WithContext(ctx).Model(&models.OrderDetailHistory{}).
		Where("owner_id = ? AND id = ? AND status = ?", actor.OwnerId, detail.ID, models.OrderDetailStatusPending).
		Updates(map[string]interface{}{
			"status":     detailStatus,
			"updated_at": when,
		}).Error
	if err != nil {
		return err
	}

	if detailStatus == models.OrderDetailStatusDeliveried {
		if err := models.AddWarehouseStock(ctx, db, actor.OwnerId, detail.ProductId, detail.Quantity); err != nil {
			return err
		}
	}

	logDetails := notes
	if logDetails == "" {
		logDetails = fmt.Sprintf("line %d -> %s", detail.ID, detailStatus)
	}
	log := models.LoggingOrder{
		OwnerId:       actor.OwnerId,
		OrderId:       order.ID,
		OrderDetailId: detail.ID,
		Status:        logStatus,
		UserId:        actor.UserId,
		UserName:      actor.UserName,
		Tax:           logTax,
		Details:       logDetails,
	}
	return db.WithContext(ctx).Create(&log).Error
}
