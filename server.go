package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/storeline/retail_backend/config"
	"bitbucket.org/storeline/retail_backend/middlewares"
	"bitbucket.org/storeline/retail_backend/models"
	"bitbucket.org/storeline/retail_backend/utils"
	"bitbucket.org/storeline/retail_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("storeline-retail")

type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func getRedisClient(redisAddress string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
}

func actorFromContext(ctx context.Context) (workflow.Actor, bool) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return workflow.Actor{}, false
	}
	ownerId, ok := utils.GetOwnerIdFromContext(ctx)
	if !ok || ownerId == "" {
		return workflow.Actor{}, false
	}
	name, _ := utils.GetUserNameFromContext(ctx)
	email, _ := utils.GetUserEmailFromContext(ctx)
	return workflow.Actor{
		UserId:   userId,
		UserName: name,
		Email:    email,
		OwnerId:  ownerId,
	}, true
}

func bindError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

/* auth */

type registerRequest struct {
	OwnerName string `json:"owner_name" binding:"required"`
	Email     string `json:"email" binding:"required"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Username  string `json:"username" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Password  string `json:"password" binding:"required,min=8"`
}

func registerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		ctx := c.Request.Context()

		owner, err := models.CreateOwner(ctx, &models.NewOwner{
			Name:    req.OwnerName,
			Email:   req.Email,
			Phone:   req.Phone,
			Address: req.Address,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user, err := models.CreateUser(ctx, &models.NewUser{
			OwnerId:  owner.ID.String(),
			Username: req.Username,
			Name:     req.Name,
			Email:    req.Email,
			Phone:    req.Phone,
			Password: req.Password,
			Role:     models.AdminRoleName,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"owner": owner, "user": user})
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := models.Logout(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logged_out": ok})
	}
}

/* purchasing */

func saveOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req workflow.SaveOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		result, err := workflow.SaveOrderHistory(c.Request.Context(), actor, &req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "order save failed", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":          "order saved",
			"order_ids":        result.OrderIds,
			"email_outbox_ids": result.EmailOutboxIds,
		})
	}
}

func updateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req workflow.UpdateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		result, err := workflow.UpdateOrderHistory(c.Request.Context(), actor, &req)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "order updated",
			"updated": result.Updated,
			"failed":  result.Failed,
		})
	}
}

func listOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		rows, err := models.ListPendingOrders(c.Request.Context(), actor.OwnerId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": rows})
	}
}

func orderLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		id, ok := pathId(c)
		if !ok {
			return
		}
		logs, err := models.ListOrderLogs(c.Request.Context(), actor.OwnerId, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": logs})
	}
}

/* selling */

func createBillHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req workflow.CreateBillRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		bill, err := workflow.CreateBill(c.Request.Context(), actor, &req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "bill failed", "error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "bill created", "bill": bill})
	}
}

func listBillsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		from, to, err := dateRange(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		bills, err := models.ListBills(c.Request.Context(), actor.OwnerId, from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"bills": bills})
	}
}

func dateRange(c *gin.Context) (time.Time, time.Time, error) {
	var from, to time.Time
	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, fmt.Errorf("invalid from date %q", v)
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, fmt.Errorf("invalid to date %q", v)
		}
		// inclusive end of day
		to = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return from, to, nil
}

/* calendar */

func listEventsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		from, to, err := dateRange(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		events, err := models.ListEvents(c.Request.Context(), actor.OwnerId, from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	}
}

func createEventHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		var input models.NewEvent
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		event, err := models.CreateEvent(c.Request.Context(), actor.OwnerId, actor.UserId, &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"event": event})
	}
}

func updateEventHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewEvent
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		event, err := models.UpdateEvent(c.Request.Context(), actor.OwnerId, id, &input)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"event": event})
	}
}

func deleteEventHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		id, ok := pathId(c)
		if !ok {
			return
		}
		if err := models.DeleteEvent(c.Request.Context(), actor.OwnerId, id); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}

/* catalog CRUD */

func createProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		product, err := models.CreateProduct(c.Request.Context(), actor.OwnerId, actor.UserId, &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"product": product})
	}
}

func updateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		product, err := models.UpdateProduct(c.Request.Context(), actor.OwnerId, actor.UserId, id, &input)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product})
	}
}

func deleteProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		id, ok := pathId(c)
		if !ok {
			return
		}
		product, err := models.DeleteProduct(c.Request.Context(), actor.OwnerId, actor.UserId, id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product})
	}
}

func listProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		products, err := models.ListProducts(c.Request.Context(), actor.OwnerId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": products})
	}
}

func productHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		id, ok := pathId(c)
		if !ok {
			return
		}
		rows, err := models.GetProductHistory(c.Request.Context(), actor.OwnerId, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"history": rows})
	}
}

func supplierHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		id, ok := pathId(c)
		if !ok {
			return
		}
		rows, err := models.GetSupplierHistory(c.Request.Context(), actor.OwnerId, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"history": rows})
	}
}

func customerHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		id, ok := pathId(c)
		if !ok {
			return
		}
		rows, err := models.GetCustomerHistory(c.Request.Context(), actor.OwnerId, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"history": rows})
	}
}

func getSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		id, ok := pathId(c)
		if !ok {
			return
		}
		supplier, err := models.GetSupplier(c.Request.Context(), actor.OwnerId, id)
		if err != nil {
			if err == utils.ErrorRecordNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"supplier": supplier})
	}
}

func createSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		var input models.NewSupplier
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		supplier, err := models.CreateSupplier(c.Request.Context(), actor.OwnerId, actor.UserId, &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"supplier": supplier})
	}
}

func updateSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewSupplier
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		supplier, err := models.UpdateSupplier(c.Request.Context(), actor.OwnerId, actor.UserId, id, &input)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "supplier not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"supplier": supplier})
	}
}

func deleteSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		id, ok := pathId(c)
		if !ok {
			return
		}
		supplier, err := models.DeleteSupplier(c.Request.Context(), actor.OwnerId, actor.UserId, id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "supplier not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"supplier": supplier})
	}
}

func listSuppliersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		suppliers, err := models.ListSuppliers(c.Request.Context(), actor.OwnerId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"suppliers": suppliers})
	}
}

func createCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		var input models.NewCustomer
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		customer, err := models.CreateCustomer(c.Request.Context(), actor.OwnerId, actor.UserId, &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"customer": customer})
	}
}

func updateCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewCustomer
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		customer, err := models.UpdateCustomer(c.Request.Context(), actor.OwnerId, actor.UserId, id, &input)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "customer not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"customer": customer})
	}
}

func deleteCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		id, ok := pathId(c)
		if !ok {
			return
		}
		customer, err := models.DeleteCustomer(c.Request.Context(), actor.OwnerId, actor.UserId, id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "customer not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"customer": customer})
	}
}

func listCustomersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		customers, err := models.ListCustomers(c.Request.Context(), actor.OwnerId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"customers": customers})
	}
}

func listUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		users, err := models.GetAllUsers(c.Request.Context(), actor.OwnerId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users})
	}
}

/* roles */

func createRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		var input models.NewRole
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		role, err := models.CreateRole(c.Request.Context(), actor.OwnerId, &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"role": role, "permissions": role.PermissionList()})
	}
}

func updateRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewRole
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		role, err := models.UpdateRole(c.Request.Context(), actor.OwnerId, id, &input)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "role not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"role": role, "permissions": role.PermissionList()})
	}
}

func deleteRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		id, ok := pathId(c)
		if !ok {
			return
		}
		role, err := models.DeleteRole(c.Request.Context(), actor.OwnerId, id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "role not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"role": role})
	}
}

func listRolesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFromContext(c.Request.Context())
		roles, err := models.ListRoles(c.Request.Context(), actor.OwnerId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"roles": roles})
	}
}

/* reports */

func exportSalesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "exportSales")
		defer span.End()

		actor, _ := actorFromContext(ctx)
		from, to, err := dateRange(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if from.IsZero() {
			from = time.Now().AddDate(0, -1, 0)
		}
		if to.IsZero() {
			to = time.Now()
		}

		f, err := models.BuildSalesWorkbook(ctx, actor.OwnerId, from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=sales.xlsx")
		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "server.go", "exportSalesHandler", "write", nil, err)
		}
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP; app endpoints return 503 until DB/Redis
	// are ready.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production requires an explicit allowlist; anything else allows all.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// Optional rate limiting.
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.SessionMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.POST("/auth/register", registerHandler())
	api.POST("/auth/login", loginHandler())

	authed := api.Group("")
	authed.Use(middlewares.RequireAuth())
	authed.POST("/auth/logout", logoutHandler())

	authed.POST("/import/orderHistory/save", middlewares.RequirePermission(models.PermissionCreateOrder), saveOrderHandler())
	authed.PUT("/import/orderHistory/updateOrderHistory", middlewares.RequirePermission(models.PermissionEditOrder), updateOrderHandler())
	authed.GET("/import/orderHistory", listOrdersHandler())
	authed.GET("/import/orderHistory/:id/logs", orderLogsHandler())

	authed.POST("/sell/history", middlewares.RequirePermission(models.PermissionCreateBill), createBillHandler())
	authed.GET("/sell/history", listBillsHandler())

	authed.GET("/products", listProductsHandler())
	authed.GET("/products/:id/history", productHistoryHandler())
	authed.POST("/products", middlewares.RequirePermission(models.PermissionCreateProduct), createProductHandler())
	authed.PUT("/products/:id", middlewares.RequirePermission(models.PermissionEditProduct), updateProductHandler())
	authed.DELETE("/products/:id", middlewares.RequirePermission(models.PermissionDeleteProduct), deleteProductHandler())

	authed.GET("/suppliers", listSuppliersHandler())
	authed.GET("/suppliers/:id", getSupplierHandler())
	authed.GET("/suppliers/:id/history", supplierHistoryHandler())
	authed.POST("/suppliers", middlewares.RequirePermission(models.PermissionCreateSupplier), createSupplierHandler())
	authed.PUT("/suppliers/:id", middlewares.RequirePermission(models.PermissionEditSupplier), updateSupplierHandler())
	authed.DELETE("/suppliers/:id", middlewares.RequirePermission(models.PermissionDeleteSupplier), deleteSupplierHandler())

	authed.GET("/customers", listCustomersHandler())
	authed.GET("/customers/:id/history", customerHistoryHandler())
	authed.POST("/customers", middlewares.RequirePermission(models.PermissionCreateCustomer), createCustomerHandler())
	authed.PUT("/customers/:id", middlewares.RequirePermission(models.PermissionEditCustomer), updateCustomerHandler())
	authed.DELETE("/customers/:id", middlewares.RequirePermission(models.PermissionDeleteCustomer), deleteCustomerHandler())

	authed.GET("/events", listEventsHandler())
	authed.POST("/events", createEventHandler())
	authed.PUT("/events/:id", updateEventHandler())
	authed.DELETE("/events/:id", deleteEventHandler())

	authed.GET("/users", middlewares.RequirePermission(models.PermissionManageRoles), listUsersHandler())

	authed.GET("/roles", listRolesHandler())
	authed.POST("/roles", middlewares.RequirePermission(models.PermissionManageRoles), createRoleHandler())
	authed.PUT("/roles/:id", middlewares.RequirePermission(models.PermissionManageRoles), updateRoleHandler())
	authed.DELETE("/roles/:id", middlewares.RequirePermission(models.PermissionManageRoles), deleteRoleHandler())

	authed.GET("/reports/sales/export", middlewares.RequirePermission(models.PermissionViewReports), exportSalesHandler())

	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations as
	// a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Drain the email outbox after commits.
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	go workflow.NewEmailDispatcher(db, logger, config.NewMailerFromEnv()).Run(dispatcherCtx)

	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	log.Println("Server started successfully on port " + port)

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop the dispatcher before draining so it does not start new sends.
	cancelDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger logs only requests that recorded errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := "rl:" + c.ClientIP()

	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
