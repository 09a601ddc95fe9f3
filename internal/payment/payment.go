// Package payment charges the cart through the hosted payment function and
// hands confirmed payments to the order orchestrator.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/01moynul/storefront-go/internal/apperr"
	"github.com/01moynul/storefront-go/internal/cart"
	"github.com/01moynul/storefront-go/internal/models"
	"github.com/01moynul/storefront-go/internal/order"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	MethodCard   = "card"
	MethodWallet = "wallet"
	MethodCOD    = "cod"

	MsgPaymentSuccessful = "Payment successful"
	MsgCODUnavailable    = "Cash on delivery not available at this moment."
	MsgPaymentFailed     = "Payment Failed"

	defaultCountry = "US"
	paymentComment = "Payment for order"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	zipPattern   = regexp.MustCompile(`^[0-9]{4,10}$`)
)

// Invoker calls a hosted function and returns its raw response body.
type Invoker interface {
	Invoke(ctx context.Context, name string, payload any, headers map[string]string) ([]byte, error)
}

// CartSource loads the cart being paid for.
type CartSource interface {
	List(ctx context.Context, userID string) ([]models.CartLine, error)
}

// Placer commits the order once the payment is confirmed.
type Placer interface {
	PlaceOrder(ctx context.Context, user *models.User, in order.Placement, pay order.Confirmation) (int64, error)
}

// CheckoutRequest is the delivery and payment input collected at checkout.
type CheckoutRequest struct {
	Method         string `json:"method"`
	Token          string `json:"token"`
	ShippingMethod string `json:"shipping_method"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	Address1       string `json:"address1"`
	Address2       string `json:"address2"`
	ZipCode        string `json:"zip"`
	State          string `json:"state"`
	Country        string `json:"country"`
}

func (r CheckoutRequest) address() models.Address {
	country := strings.TrimSpace(r.Country)
	if country == "" {
		country = defaultCountry
	}
	return models.Address{
		AddressLine1: strings.TrimSpace(r.Address1),
		AddressLine2: strings.TrimSpace(r.Address2),
		Country:      country,
		State:        strings.TrimSpace(r.State),
		ZipCode:      strings.TrimSpace(r.ZipCode),
	}
}

// Validate checks the delivery fields in form order and returns the first
// problem found.
func (r CheckoutRequest) Validate() error {
	fields := []struct{ label, value string }{
		{"Email", r.Email},
		{"Full Name", r.Name},
		{"Address Line 1", r.Address1},
		{"Address Line 2", r.Address2},
		{"Zip Code", r.ZipCode},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return invalid(f.label + " is required")
		}
	}
	if !emailPattern.MatchString(strings.TrimSpace(r.Email)) {
		return invalid("Please enter a valid email")
	}
	if !zipPattern.MatchString(strings.TrimSpace(r.ZipCode)) {
		return invalid("Please enter a valid zip code")
	}

	switch r.Method {
	case MethodCard, MethodWallet:
		if strings.TrimSpace(r.Token) == "" {
			return invalid("Payment token is required")
		}
	case MethodCOD:
	default:
		return invalid("Unsupported payment method")
	}
	return nil
}

func invalid(message string) error {
	return apperr.New(apperr.KindValidation, "payment.validate", message)
}

// chargeRequest is the body of the payment function call. Exactly one of
// Token and PaymentMethodID is set.
type chargeRequest struct {
	Token           string         `json:"token,omitempty"`
	PaymentMethodID string         `json:"paymentMethodId,omitempty"`
	Amount          int64          `json:"amount"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	Address         models.Address `json:"address"`
	Comment         string         `json:"comment"`
}

type chargeResponse struct {
	Message       string `json:"message"`
	TransactionID string `json:"transactionId"`
	ChargeID      string `json:"chargeId"`
}

type Bridge struct {
	functions Invoker
	function  string
	cart      CartSource
	placer    Placer
	logger    zerolog.Logger
	newKey    func() string
}

func NewBridge(functions Invoker, function string, cart CartSource, placer Placer, logger zerolog.Logger) *Bridge {
	return &Bridge{
		functions: functions,
		function:  function,
		cart:      cart,
		placer:    placer,
		logger:    logger.With().Str("component", "payment").Logger(),
		newKey:    uuid.NewString,
	}
}

// Checkout validates the request, charges the cart total and places the
// order. The order is only placed when the processor reports success.
func (b *Bridge) Checkout(ctx context.Context, user *models.User, req CheckoutRequest) (int64, error) {
	// 1. --- Validate Input ---
	if user == nil || user.ID == "" {
		return 0, order.ErrNotAuthenticated
	}
	if err := req.Validate(); err != nil {
		return 0, err
	}
	if req.Method == MethodCOD {
		return 0, apperr.New(apperr.KindPaymentDeclined, "payment.checkout", MsgCODUnavailable)
	}
	log := b.logger.With().Str("user_id", user.ID).Str("method", req.Method).Logger()

	// 2. --- Price The Cart ---
	lines, err := b.cart.List(ctx, user.ID)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "payment.checkout", "Could not load cart", err)
	}
	if len(lines) == 0 {
		return 0, order.ErrEmptyCart
	}
	totals := cart.Compute(lines, req.ShippingMethod)

	// 3. --- Charge ---
	body := chargeRequest{
		Amount:  totals.Total.Round(0).IntPart(),
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Address: req.address(),
		Comment: paymentComment,
	}
	if req.Method == MethodWallet {
		body.PaymentMethodID = req.Token
	} else {
		body.Token = req.Token
	}

	raw, err := b.functions.Invoke(ctx, b.function, body, map[string]string{"Idempotency-Key": b.newKey()})
	if err != nil {
		log.Error().Err(err).Msg("payment function call failed")
		return 0, apperr.Wrap(apperr.KindPaymentDeclined, "payment.charge", MsgPaymentFailed, err)
	}

	var resp chargeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, apperr.Wrap(apperr.KindPaymentDeclined, "payment.charge", MsgPaymentFailed, fmt.Errorf("decode payment response: %w", err))
	}
	if resp.Message != MsgPaymentSuccessful {
		log.Warn().Str("processor_message", resp.Message).Msg("payment declined")
		return 0, apperr.New(apperr.KindPaymentDeclined, "payment.charge", MsgPaymentFailed)
	}
	log.Info().Str("transaction_id", resp.TransactionID).Int64("amount", body.Amount).Msg("payment confirmed")

	// 4. --- Place Order ---
	return b.placer.PlaceOrder(ctx, user, order.Placement{
		Email:          body.Email,
		Address:        body.Address,
		ShippingMethod: req.ShippingMethod,
	}, order.Confirmation{
		PaymentStatus: models.PaymentStatusSuccess,
		TransactionID: resp.TransactionID,
		ChargeID:      resp.ChargeID,
		Message:       resp.Message,
		Amount:        decimal.NewFromInt(body.Amount),
		Raw:           raw,
	})
}
