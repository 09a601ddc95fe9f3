// Package order places orders from the current cart and reads them back.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/01moynul/storefront-go/internal/apperr"
	"github.com/01moynul/storefront-go/internal/cart"
	"github.com/01moynul/storefront-go/internal/functions"
	"github.com/01moynul/storefront-go/internal/gateway"
	"github.com/01moynul/storefront-go/internal/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	DefaultTrackingAttempts = 20
	DefaultEmailTimeout     = 15 * time.Second
)

// CartSource is the part of the cart manager the orchestrator needs.
type CartSource interface {
	List(ctx context.Context, userID string) ([]models.CartLine, error)
	ClearAll(ctx context.Context, userID string) error
}

// SideEffects sends the post-order email and push.
type SideEffects interface {
	SendOrderEmail(ctx context.Context, email functions.OrderEmail) error
	SendPush(ctx context.Context, push functions.Push) error
}

// Placement is the delivery input collected at checkout.
type Placement struct {
	Email          string
	Address        models.Address
	ShippingMethod string
}

// Confirmation is what the payment processor reported. Amount is the sum
// actually charged.
type Confirmation struct {
	PaymentStatus string
	TransactionID string
	ChargeID      string
	Message       string
	Amount        decimal.Decimal
	Raw           json.RawMessage
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRandom replaces the source used for tracking codes and delivery
// estimates. intn must return a value in [0, n).
func WithRandom(intn func(n int) int) Option {
	return func(o *Orchestrator) { o.intn = intn }
}

func WithTrackingAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.trackingAttempts = n
		}
	}
}

func WithEmailTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.emailTimeout = d
		}
	}
}

type Orchestrator struct {
	gw      gateway.Gateway
	cart    CartSource
	effects SideEffects
	logger  zerolog.Logger

	now              func() time.Time
	intn             func(n int) int
	trackingAttempts int
	emailTimeout     time.Duration

	inflight sync.WaitGroup
}

func NewOrchestrator(gw gateway.Gateway, cart CartSource, effects SideEffects, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gw:               gw,
		cart:             cart,
		effects:          effects,
		logger:           logger.With().Str("component", "order").Logger(),
		now:              time.Now,
		intn:             rand.IntN,
		trackingAttempts: DefaultTrackingAttempts,
		emailTimeout:     DefaultEmailTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Wait blocks until fire-and-forget side effects started by PlaceOrder have
// finished.
func (o *Orchestrator) Wait() {
	o.inflight.Wait()
}

// placement carries the state shared by the steps of one PlaceOrder call.
type placement struct {
	user     *models.User
	in       Placement
	pay      Confirmation
	lines    []models.CartLine
	totals   cart.Totals
	tracking string
	delivery time.Time
	placedAt time.Time
	orderID  int64
}

type step struct {
	name string
	// critical steps abort the placement; the others are logged and skipped.
	critical bool
	sentinel error
	run      func(ctx context.Context, p *placement) error
}

func (o *Orchestrator) steps() []step {
	return []step{
		{name: "insert_order", critical: true, sentinel: ErrOrderInsertFailed, run: o.insertOrder},
		{name: "insert_order_items", critical: true, sentinel: ErrOrderItemsInsertFailed, run: o.insertItems},
		{name: "insert_payment_log", critical: true, sentinel: ErrPaymentLogInsertFailed, run: o.insertPaymentLog},
		{name: "send_order_email", run: o.sendEmail},
		{name: "insert_notification", run: o.notify},
		{name: "clear_cart", run: o.clearCart},
	}
}

// PlaceOrder turns the user's current cart into an order. The cart is read
// again here so the order always reflects what is stored, not what the
// client last rendered.
func (o *Orchestrator) PlaceOrder(ctx context.Context, user *models.User, in Placement, pay Confirmation) (int64, error) {
	if user == nil || user.ID == "" {
		return 0, ErrNotAuthenticated
	}
	log := o.logger.With().Str("user_id", user.ID).Logger()

	// 1. Snapshot the cart.
	lines, err := o.cart.List(ctx, user.ID)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "order.place", "Could not load cart", err)
	}
	if len(lines) == 0 {
		return 0, ErrEmptyCart
	}

	p := &placement{
		user:     user,
		in:       in,
		pay:      pay,
		lines:    lines,
		totals:   cart.Compute(lines, in.ShippingMethod),
		placedAt: o.now().UTC(),
	}
	p.delivery = o.deliveryEstimate(p.placedAt, in.ShippingMethod)

	// 2. Reserve a tracking number.
	if p.tracking, err = o.uniqueTrackingCode(ctx); err != nil {
		if errors.Is(err, ErrTrackingCodeExhausted) {
			return 0, err
		}
		return 0, apperr.Wrap(apperr.KindInternal, "order.tracking", "Could not allocate a tracking number", err)
	}

	// 3. Run the write pipeline.
	for _, s := range o.steps() {
		err := s.run(ctx, p)
		if err == nil {
			continue
		}
		if s.critical {
			if errors.Is(err, ErrTrackingCodeExhausted) {
				log.Error().Err(err).Str("step", s.name).Msg("order placement aborted")
				return 0, err
			}
			log.Error().Err(err).Str("step", s.name).Int64("order_id", p.orderID).Msg("order placement aborted")
			return 0, &StepError{Step: s.name, OrderID: p.orderID, Err: err, sentinel: s.sentinel}
		}
		log.Warn().Err(err).Str("step", s.name).Int64("order_id", p.orderID).Msg("order side effect failed")
	}

	log.Info().
		Int64("order_id", p.orderID).
		Str("tracking_number", p.tracking).
		Str("total", p.totals.Total.StringFixed(2)).
		Msg("order placed")
	return p.orderID, nil
}

// deliveryEstimate is 7 to 23 days out for free shipping and 1 to 3 days
// otherwise.
func (o *Orchestrator) deliveryEstimate(from time.Time, method string) time.Time {
	days := 1 + o.intn(3)
	if method == models.ShippingFree {
		days = 7 + o.intn(17)
	}
	return from.AddDate(0, 0, days)
}

func (o *Orchestrator) insertOrder(ctx context.Context, p *placement) error {
	status := models.OrderStatusPending
	if p.pay.PaymentStatus == models.PaymentStatusSuccess {
		status = models.OrderStatusConfirmed
	}

	for attempt := 1; ; attempt++ {
		row, err := o.gw.Insert(ctx, models.TableOrders, gateway.Row{
			"user_id":          p.user.ID,
			"status":           status,
			"total_amount":     p.totals.Total,
			"shipping_address": p.in.Address,
			"payment_status":   p.pay.PaymentStatus,
			"order_date":       p.delivery,
			"tracking_number":  p.tracking,
			"shipping_method":  p.in.ShippingMethod,
			"created_at":       p.placedAt,
		})
		if err == nil {
			id, ok := gateway.ID(row, "id")
			if !ok {
				return errors.New("order row has no id")
			}
			p.orderID = id
			return nil
		}
		// The tracking number was taken between the check and the insert.
		if !errors.Is(err, gateway.ErrConflict) || attempt >= o.trackingAttempts {
			return err
		}
		if p.tracking, err = o.uniqueTrackingCode(ctx); err != nil {
			return err
		}
	}
}

func (o *Orchestrator) insertItems(ctx context.Context, p *placement) error {
	rows := make([]gateway.Row, len(p.lines))
	for i, l := range p.lines {
		rows[i] = gateway.Row{
			"order_id":   p.orderID,
			"product_id": l.ProductID,
			"quantity":   l.Quantity,
			"price_each": l.Amount,
		}
	}
	_, err := o.gw.InsertMany(ctx, models.TableOrderItems, rows)
	return err
}

// chargedAmount is what the processor reported charging, or the order
// total when the confirmation carries no amount.
func (p *placement) chargedAmount() decimal.Decimal {
	if p.pay.Amount.IsZero() {
		return p.totals.Total
	}
	return p.pay.Amount
}

func (o *Orchestrator) insertPaymentLog(ctx context.Context, p *placement) error {
	raw := p.pay.Raw
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	_, err := o.gw.Insert(ctx, models.TablePaymentLogs, gateway.Row{
		"order_id":          p.orderID,
		"stripe_payment_id": p.pay.TransactionID,
		"charge_id":         p.pay.ChargeID,
		"status":            p.pay.Message,
		"amount":            p.chargedAmount(),
		"currency":          models.CurrencyUSD,
		"response_data":     raw,
	})
	return err
}

// sendEmail starts the confirmation email and returns at once. The send is
// detached from ctx so a finished request does not cancel it.
func (o *Orchestrator) sendEmail(ctx context.Context, p *placement) error {
	email := functions.OrderEmail{
		UserName:  p.user.Name,
		UserEmail: p.in.Email,
		CartList:  p.lines,
		Address:   p.in.Address,
		CartTotal: p.totals.Total.StringFixed(2),
		OrderID:   p.orderID,
		OrderDate: p.delivery.Format(time.RFC3339),
	}
	detached := context.WithoutCancel(ctx)

	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		ctx, cancel := context.WithTimeout(detached, o.emailTimeout)
		defer cancel()
		if err := o.effects.SendOrderEmail(ctx, email); err != nil {
			o.logger.Warn().Err(err).Int64("order_id", email.OrderID).Msg("order email not sent")
		}
	}()
	return nil
}

func (o *Orchestrator) notify(ctx context.Context, p *placement) error {
	message := OrderPlacedMessage(p.orderID)
	_, err := o.gw.Insert(ctx, models.TableNotifications, gateway.Row{
		"user_id":    p.user.ID,
		"order_id":   p.orderID,
		"message":    message,
		"read":       false,
		"type":       models.NotificationOrderPlaced,
		"created_at": p.placedAt,
	})
	if err != nil {
		return err
	}

	if err := o.effects.SendPush(ctx, functions.Push{
		UserID:  p.user.ID,
		OrderID: p.orderID,
		Title:   "Order placed",
		Body:    message,
	}); err != nil {
		o.logger.Warn().Err(err).Int64("order_id", p.orderID).Msg("push not sent")
	}
	return nil
}

func (o *Orchestrator) clearCart(ctx context.Context, p *placement) error {
	return o.cart.ClearAll(ctx, p.user.ID)
}

func OrderPlacedMessage(orderID int64) string {
	return fmt.Sprintf("✨Your order #%d has been placed successfully!", orderID)
}
