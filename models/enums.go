package models

// Order roll-up status. "Canceled" keeps its historical capitalization for
// wire compatibility with existing clients.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusDeliveried OrderStatus = "deliveried"
	OrderStatusCanceled   OrderStatus = "Canceled"
)

// Per-line status of an order detail.
type OrderDetailStatus string

const (
	OrderDetailStatusPending    OrderDetailStatus = "pending"
	OrderDetailStatusDeliveried OrderDetailStatus = "deliveried"
	OrderDetailStatusCanceled   OrderDetailStatus = "canceled"
)

// Audit status recorded on LoggingOrder rows.
type LoggingStatus string

const (
	LoggingStatusCreate     LoggingStatus = "create"
	LoggingStatusUpdate     LoggingStatus = "update"
	LoggingStatusDelete     LoggingStatus = "delete"
	LoggingStatusDeliveried LoggingStatus = "deliveried"
)

// Action recorded on entity change-history rows.
type HistoryAction string

const (
	HistoryActionCreate HistoryAction = "create"
	HistoryActionUpdate HistoryAction = "update"
	HistoryActionDelete HistoryAction = "delete"
)

// Email outbox delivery states. PENDING rows are written inside the order
// transaction; everything after commit is the dispatcher's business.
const (
	OutboxStatusPending    = "PENDING"
	OutboxStatusProcessing = "PROCESSING"
	OutboxStatusSent       = "SENT"
	OutboxStatusFailed     = "FAILED"
	OutboxStatusDead       = "DEAD"
)

// Permission names checked by the permission gate.
const (
	PermissionCreateOrder    = "create_order"
	PermissionEditOrder      = "edit_order"
	PermissionCreateBill     = "create_bill"
	PermissionCreateProduct  = "create_product"
	PermissionEditProduct    = "edit_product"
	PermissionDeleteProduct  = "delete_product"
	PermissionCreateSupplier = "create_supplier"
	PermissionEditSupplier   = "edit_supplier"
	PermissionDeleteSupplier = "delete_supplier"
	PermissionCreateCustomer = "create_customer"
	PermissionEditCustomer   = "edit_customer"
	PermissionDeleteCustomer = "delete_customer"
	PermissionManageRoles    = "manage_roles"
	PermissionViewReports    = "view_reports"
)

const AdminRoleName = "Admin"
