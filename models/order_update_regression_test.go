package models_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"bitbucket.org/storeline/retail_backend/config"
	"bitbucket.org/storeline/retail_backend/models"
	"bitbucket.org/storeline/retail_backend/utils"
	"bitbucket.org/storeline/retail_backend/workflow"
	"github.com/shopspring/decimal"
)

// Delivering a pending order must grow the warehouse by exactly each pending
// line's quantity, cancelling must leave stock untouched, and re-submitting
// the current status must not double-apply anything.
func TestOrderDeliveryStockEffects(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "storeline_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	owner, err := models.CreateOwner(ctx, &models.NewOwner{
		Name:  "Delivery Mart",
		Email: "owner@delivery.test",
	})
	if err != nil {
		t.Fatalf("CreateOwner: %v", err)
	}
	ownerId := owner.ID.String()
	ctx = utils.SetOwnerIdInContext(ctx, ownerId)
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	supplier, err := models.CreateSupplier(ctx, ownerId, 1, &models.NewSupplier{
		Name:  "Harbor Wholesale",
		Phone: "+84911223344",
	})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	rice, err := models.CreateProduct(ctx, ownerId, 1, &models.NewProduct{
		Sku:   "RICE-010",
		Name:  "Broken Rice",
		Price: "18.000",
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	beans, err := models.CreateProduct(ctx, ownerId, 1, &models.NewProduct{
		Sku:   "BEAN-010",
		Name:  "Black Beans",
		Price: "25.000",
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	actor := workflow.Actor{UserId: 1, UserName: "Test", OwnerId: ownerId}
	saved, err := workflow.SaveOrderHistory(ctx, actor, &workflow.SaveOrderRequest{
		DataForm: map[string][]workflow.OrderLine{
			fmt.Sprint(supplier.ID): {
				{ProductId: rice.ID, Price: "18.000", Quantity: 5},
				{ProductId: beans.ID, Price: "25.000", Quantity: 2},
			},
		},
	})
	if err != nil {
		t.Fatalf("SaveOrderHistory: %v", err)
	}
	if len(saved.OrderIds) != 1 {
		t.Fatalf("expected one order, got %+v", saved)
	}
	orderId := saved.OrderIds[0]

	db := config.GetDB()

	// one detail row and one logging row per submitted line
	var detailCount, logCount int64
	if err := db.WithContext(ctx).Model(&models.OrderDetailHistory{}).Where("owner_id = ? AND order_id = ?", ownerId, orderId).Count(&detailCount).Error; err != nil {
		t.Fatalf("count details: %v", err)
	}
	if err := db.WithContext(ctx).Model(&models.LoggingOrder{}).Where("owner_id = ? AND order_id = ?", ownerId, orderId).Count(&logCount).Error; err != nil {
		t.Fatalf("count logs: %v", err)
	}
	if detailCount != 2 || logCount != 2 {
		t.Fatalf("got %d details and %d logs, want 2 and 2", detailCount, logCount)
	}

	result, err := workflow.UpdateOrderHistory(ctx, actor, &workflow.UpdateOrderRequest{
		OrderId: orderId,
		Status:  string(models.OrderStatusDeliveried),
		Total:   "50.000",
		Notes:   "received at dock 3",
	})
	if err != nil {
		t.Fatalf("UpdateOrderHistory: %v", err)
	}
	if result.Updated != 2 || result.Failed != 0 {
		t.Fatalf("result = %+v, want 2 updated 0 failed", result)
	}

	refreshedRice, err := models.GetProduct(ctx, ownerId, rice.ID)
	if err != nil {
		t.Fatalf("GetProduct rice: %v", err)
	}
	if refreshedRice.StockInWarehouse != 5 {
		t.Fatalf("rice warehouse = %d, want 5", refreshedRice.StockInWarehouse)
	}
	refreshedBeans, err := models.GetProduct(ctx, ownerId, beans.ID)
	if err != nil {
		t.Fatalf("GetProduct beans: %v", err)
	}
	if refreshedBeans.StockInWarehouse != 2 {
		t.Fatalf("beans warehouse = %d, want 2", refreshedBeans.StockInWarehouse)
	}

	parent, err := models.GetOrderHistoryById(ctx, db, ownerId, orderId)
	if err != nil {
		t.Fatalf("GetOrderHistoryById: %v", err)
	}
	if parent.GeneralStatus != models.OrderStatusDeliveried {
		t.Fatalf("parent status = %s, want deliveried", parent.GeneralStatus)
	}
	if !parent.Amount.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("parent amount = %s, want 50000", parent.Amount.String())
	}

	var notedLogs int64
	if err := db.WithContext(ctx).Model(&models.LoggingOrder{}).Where("owner_id = ? AND order_id = ? AND details = ?", ownerId, orderId, "received at dock 3").Count(&notedLogs).Error; err != nil {
		t.Fatalf("count noted logs: %v", err)
	}
	if notedLogs != 2 {
		t.Fatalf("noted logs = %d, want 2", notedLogs)
	}

	// same status again: snapshot refresh only, no second stock add
	again, err := workflow.UpdateOrderHistory(ctx, actor, &workflow.UpdateOrderRequest{
		OrderId: orderId,
		Status:  string(models.OrderStatusDeliveried),
		Total:   "51.000",
	})
	if err != nil {
		t.Fatalf("re-submit deliveried: %v", err)
	}
	if again.Updated != 0 || again.Failed != 0 {
		t.Fatalf("re-submit result = %+v, want no line work", again)
	}
	refreshedRice, err = models.GetProduct(ctx, ownerId, rice.ID)
	if err != nil {
		t.Fatalf("GetProduct rice: %v", err)
	}
	if refreshedRice.StockInWarehouse != 5 {
		t.Fatalf("rice warehouse after re-submit = %d, want 5", refreshedRice.StockInWarehouse)
	}
	parent, err = models.GetOrderHistoryById(ctx, db, ownerId, orderId)
	if err != nil {
		t.Fatalf("GetOrderHistoryById: %v", err)
	}
	if !parent.Amount.Equal(decimal.NewFromInt(51000)) {
		t.Fatalf("refreshed amount = %s, want 51000", parent.Amount.String())
	}

	// a cancelled order never touches the warehouse
	cancelled, err := workflow.SaveOrderHistory(ctx, actor, &workflow.SaveOrderRequest{
		DataForm: map[string][]workflow.OrderLine{
			fmt.Sprint(supplier.ID): {
				{ProductId: rice.ID, Price: "18.000", Quantity: 3},
			},
		},
	})
	if err != nil {
		t.Fatalf("SaveOrderHistory second: %v", err)
	}
	if _, err := workflow.UpdateOrderHistory(ctx, actor, &workflow.UpdateOrderRequest{
		OrderId: cancelled.OrderIds[0],
		Status:  string(models.OrderStatusCanceled),
	}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	refreshedRice, err = models.GetProduct(ctx, ownerId, rice.ID)
	if err != nil {
		t.Fatalf("GetProduct rice: %v", err)
	}
	if refreshedRice.StockInWarehouse != 5 {
		t.Fatalf("rice warehouse after cancel = %d, want 5", refreshedRice.StockInWarehouse)
	}
}
