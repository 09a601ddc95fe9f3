package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusConfirmed = "Confirmed"
	OrderStatusPending   = "Pending"

	PaymentStatusSuccess = "success"

	ShippingFree    = "free"
	ShippingExpress = "express"

	CurrencyUSD = "USD"
)

// Address is the delivery address stored on an order.
type Address struct {
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	Country      string `json:"country"`
	State        string `json:"state"`
	ZipCode      string `json:"zipCode"`
}

// Order is the model for the 'orders' table. OrderDate holds the estimated
// delivery date, not the placement time.
type Order struct {
	ID              int64           `json:"id"`
	UserID          string          `json:"user_id"`
	Status          string          `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress Address         `json:"shipping_address"`
	PaymentStatus   string          `json:"payment_status"`
	OrderDate       time.Time       `json:"order_date"`
	TrackingNumber  string          `json:"tracking_number"`
	ShippingMethod  string          `json:"shipping_method"`
	CreatedAt       *time.Time      `json:"created_at,omitempty"`

	Items []OrderItem `json:"order_items,omitempty"`
}

// OrderItem snapshots one cart line at placement time.
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	PriceEach decimal.Decimal `json:"price_each"`
}

// PaymentLog records the processor response for an order.
type PaymentLog struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"order_id"`
	StripePaymentID string          `json:"stripe_payment_id"`
	ChargeID        string          `json:"charge_id"`
	Status          string          `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	ResponseData    json.RawMessage `json:"response_data"`
}
