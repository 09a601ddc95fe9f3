package models

// Table names in the hosted store.
const (
	TableUsers         = "users"
	TableProducts      = "products"
	TableProductImages = "product_images"
	TableCart          = "cart"
	TableOrders        = "orders"
	TableOrderItems    = "order_items"
	TablePaymentLogs   = "orderpayments_logs"
	TableNotifications = "notifications"
)

// Result is the uniform outcome of a cart or notification mutation.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func OK(message string) Result   { return Result{Success: true, Message: message} }
func Fail(message string) Result { return Result{Success: false, Message: message} }
