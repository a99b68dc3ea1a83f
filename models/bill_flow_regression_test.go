package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/storeline/retail_backend/config"
	"bitbucket.org/storeline/retail_backend/models"
	"bitbucket.org/storeline/retail_backend/utils"
	"bitbucket.org/storeline/retail_backend/workflow"
	"github.com/shopspring/decimal"
)

// Selling the same cart twice must produce two bills and count the customer
// twice; bill posting has no idempotency key. Shelf stock clamps at zero
// instead of going negative.
func TestBillPostingEffects(t *testing.T) {
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
		Name:  "Bill Flow Mart",
		Email: "owner@billflow.test",
	})
	if err != nil {
		t.Fatalf("CreateOwner: %v", err)
	}
	ownerId := owner.ID.String()
	ctx = utils.SetOwnerIdInContext(ctx, ownerId)
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	product, err := models.CreateProduct(ctx, ownerId, 1, &models.NewProduct{
		Sku:          "NOODLE-001",
		Name:         "Instant Noodles",
		Price:        "1.500",
		StockInShelf: 3,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	actor := workflow.Actor{UserId: 1, UserName: "Test", OwnerId: ownerId}
	req := &workflow.CreateBillRequest{
		CustomerPhone: "+84912345678",
		CustomerName:  "Lan",
		Items: []workflow.BillItemInput{
			{ProductId: product.ID, Quantity: 2, Price: "1.500"},
		},
	}

	first, err := workflow.CreateBill(ctx, actor, req)
	if err != nil {
		t.Fatalf("first CreateBill: %v", err)
	}
	if !first.TotalAmount.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("first bill total = %s, want 3000", first.TotalAmount.String())
	}
	if first.CustomerId == nil {
		t.Fatalf("expected auto-created customer on first bill")
	}

	// same request again: a second bill, not a dedupe
	second, err := workflow.CreateBill(ctx, actor, req)
	if err != nil {
		t.Fatalf("second CreateBill: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("second bill reused id %d", first.ID)
	}

	customer, err := models.GetCustomer(ctx, ownerId, *first.CustomerId)
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if customer.Rate != 2 {
		t.Fatalf("customer rate = %d, want 2", customer.Rate)
	}
	if !customer.Money.Equal(decimal.NewFromInt(6000)) {
		t.Fatalf("customer money = %s, want 6000", customer.Money.String())
	}
	if customer.FirstPurchaseDate == nil || customer.LastPurchaseDate == nil {
		t.Fatalf("purchase dates not stamped: %+v", customer)
	}

	// 3 on the shelf, 4 sold: clamped at zero
	refreshed, err := models.GetProduct(ctx, ownerId, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if refreshed.StockInShelf != 0 {
		t.Fatalf("shelf stock = %d, want 0 (clamped)", refreshed.StockInShelf)
	}
	if refreshed.Rate != 2 {
		t.Fatalf("product rate = %d, want 2", refreshed.Rate)
	}
}

// An order save failing on any supplier group must leave nothing behind:
// no orders, no details, no outbox mail.
func TestSaveOrderRollsBackOutboxRows(t *testing.T) {
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
		Name:  "Rollback Mart",
		Email: "owner@rollback.test",
	})
	if err != nil {
		t.Fatalf("CreateOwner: %v", err)
	}
	ownerId := owner.ID.String()
	ctx = utils.SetOwnerIdInContext(ctx, ownerId)
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	supplier, err := models.CreateSupplier(ctx, ownerId, 1, &models.NewSupplier{
		Name:  "Golden Fields Co",
		Phone: "+84987654321",
		Email: "sales@goldenfields.test",
	})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	product, err := models.CreateProduct(ctx, ownerId, 1, &models.NewProduct{
		Sku:   "RICE-001",
		Name:  "Jasmine Rice",
		Price: "20.000",
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	actor := workflow.Actor{UserId: 1, UserName: "Test", Email: "buyer@rollback.test", OwnerId: ownerId}

	// second group references a supplier that does not exist, so the whole
	// save must abort
	req := &workflow.SaveOrderRequest{
		DataForm: map[string][]workflow.OrderLine{
			fmt.Sprint(supplier.ID): {
				{ProductId: product.ID, Price: "20.000", Quantity: 5},
			},
			"999999": {
				{ProductId: product.ID, Price: "20.000", Quantity: 1},
			},
		},
	}
	if _, err := workflow.SaveOrderHistory(ctx, actor, req); err == nil {
		t.Fatalf("expected save to fail on unknown supplier")
	}

	db := config.GetDB()
	var orderCount, outboxCount int64
	if err := db.WithContext(ctx).Model(&models.OrderHistory{}).Where("owner_id = ?", ownerId).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if err := db.WithContext(ctx).Model(&models.EmailOutboxRecord{}).Where("owner_id = ?", ownerId).Count(&outboxCount).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if orderCount != 0 || outboxCount != 0 {
		t.Fatalf("rollback leaked rows: orders=%d outbox=%d", orderCount, outboxCount)
	}

	// the happy path queues exactly one mail for the supplier with an email
	good := &workflow.SaveOrderRequest{
		DataForm: map[string][]workflow.OrderLine{
			fmt.Sprint(supplier.ID): {
				{ProductId: product.ID, Price: "20.000", Quantity: 5},
			},
		},
		Tax: "5",
	}
	result, err := workflow.SaveOrderHistory(ctx, actor, good)
	if err != nil {
		t.Fatalf("SaveOrderHistory: %v", err)
	}
	if len(result.OrderIds) != 1 || len(result.EmailOutboxIds) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	record, err := models.GetOutboxRecord(ctx, result.EmailOutboxIds[0])
	if err != nil {
		t.Fatalf("GetOutboxRecord: %v", err)
	}
	if record.Status != models.OutboxStatusPending {
		t.Fatalf("outbox status = %s, want PENDING", record.Status)
	}
	if !strings.Contains(record.Body, fmt.Sprintf("order #%d", result.OrderIds[0])) {
		t.Fatalf("mail body does not reference the saved order: %q", record.Body)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("retail-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("retail-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=storeline_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
