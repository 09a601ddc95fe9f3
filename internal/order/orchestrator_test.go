package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/01moynul/storefront-go/internal/apperr"
	"github.com/01moynul/storefront-go/internal/cart"
	"github.com/01moynul/storefront-go/internal/functions"
	"github.com/01moynul/storefront-go/internal/gateway"
	"github.com/01moynul/storefront-go/internal/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type fakeEffects struct {
	mu       sync.Mutex
	emails   []functions.OrderEmail
	pushes   []functions.Push
	emailErr error
	pushErr  error
}

func (f *fakeEffects) SendOrderEmail(_ context.Context, e functions.OrderEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = append(f.emails, e)
	return f.emailErr
}

func (f *fakeEffects) SendPush(_ context.Context, p functions.Push) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, p)
	return f.pushErr
}

// faultyGateway fails writes to the listed tables and counts every write.
type faultyGateway struct {
	*gateway.MemoryGateway
	fail   map[string]error
	mu     sync.Mutex
	writes int
}

func (f *faultyGateway) count() {
	f.mu.Lock()
	f.writes++
	f.mu.Unlock()
}

func (f *faultyGateway) Insert(ctx context.Context, table string, row gateway.Row) (gateway.Row, error) {
	f.count()
	if err := f.fail[table]; err != nil {
		return nil, err
	}
	return f.MemoryGateway.Insert(ctx, table, row)
}

func (f *faultyGateway) InsertMany(ctx context.Context, table string, rows []gateway.Row) ([]gateway.Row, error) {
	f.count()
	if err := f.fail[table]; err != nil {
		return nil, err
	}
	return f.MemoryGateway.InsertMany(ctx, table, rows)
}

func (f *faultyGateway) Update(ctx context.Context, table string, values gateway.Row, filters ...gateway.Filter) (int64, error) {
	f.count()
	return f.MemoryGateway.Update(ctx, table, values, filters...)
}

func (f *faultyGateway) Delete(ctx context.Context, table string, filters ...gateway.Filter) (int64, error) {
	f.count()
	if err := f.fail[table]; err != nil {
		return 0, err
	}
	return f.MemoryGateway.Delete(ctx, table, filters...)
}

type fixture struct {
	gw      *faultyGateway
	effects *fakeEffects
	orch    *Orchestrator
	user    *models.User
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	mem := gateway.NewMemoryGateway().
		Unique(models.TableCart, "user_id", "product_id").
		Unique(models.TableOrders, "tracking_number")
	mem.Seed(models.TableProducts,
		gateway.Row{"name": "A", "amount": decimal.NewFromInt(10), "is_active": true},
		gateway.Row{"name": "B", "amount": decimal.NewFromInt(5), "is_active": true},
	)
	gw := &faultyGateway{MemoryGateway: mem, fail: map[string]error{}}
	effects := &fakeEffects{}
	cm := cart.NewManager(gw, zerolog.Nop())

	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return &fixture{
		gw:      gw,
		effects: effects,
		orch:    NewOrchestrator(gw, cm, effects, zerolog.Nop(), opts...),
		user:    &models.User{ID: "u-1", Email: "ada@shop.io", Name: "Ada"},
	}
}

// seedScenarioA puts product A x2 @10 and product B x1 @5 in u-1's cart.
func (f *fixture) seedScenarioA() {
	f.gw.Seed(models.TableCart,
		gateway.Row{"user_id": "u-1", "product_id": int64(1), "quantity": 2, "amount": decimal.NewFromInt(10)},
		gateway.Row{"user_id": "u-1", "product_id": int64(2), "quantity": 1, "amount": decimal.NewFromInt(5)},
	)
}

func placementFor(method string) Placement {
	return Placement{
		Email:          "ada@shop.io",
		ShippingMethod: method,
		Address: models.Address{
			AddressLine1: "1 Main St",
			AddressLine2: "Apt 2",
			Country:      "US",
			State:        "CA",
			ZipCode:      "94016",
		},
	}
}

func paid() Confirmation {
	return Confirmation{
		PaymentStatus: models.PaymentStatusSuccess,
		TransactionID: "pi_123",
		ChargeID:      "ch_456",
		Message:       "Payment successful",
		Raw:           json.RawMessage(`{"message":"Payment successful","transactionId":"pi_123"}`),
	}
}

func TestPlaceOrderScenarioA(t *testing.T) {
	f := newFixture(t)
	f.seedScenarioA()

	id, err := f.orch.PlaceOrder(context.Background(), f.user, placementFor(models.ShippingExpress), paid())
	require.NoError(t, err)
	f.orch.Wait()

	orders := f.gw.Rows(models.TableOrders)
	require.Len(t, orders, 1)
	var order models.Order
	require.NoError(t, gateway.Decode(orders[0], &order))
	assert.Equal(t, id, order.ID)
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(55)), order.TotalAmount.String())
	assert.Equal(t, models.ShippingExpress, order.ShippingMethod)
	assert.Equal(t, "94016", order.ShippingAddress.ZipCode)
	assert.Regexp(t, regexp.MustCompile(`^ORD-[A-Z0-9]{6}$`), order.TrackingNumber)
	assert.False(t, order.OrderDate.Before(fixedNow.AddDate(0, 0, 1)))
	assert.False(t, order.OrderDate.After(fixedNow.AddDate(0, 0, 3)))

	var items []models.OrderItem
	require.NoError(t, gateway.Decode(f.gw.Rows(models.TableOrderItems), &items))
	require.Len(t, items, 2)
	prices := map[int64]decimal.Decimal{}
	for _, it := range items {
		assert.Equal(t, id, it.OrderID)
		prices[it.ProductID] = it.PriceEach
	}
	assert.True(t, prices[1].Equal(decimal.NewFromInt(10)))
	assert.True(t, prices[2].Equal(decimal.NewFromInt(5)))

	var logs []models.PaymentLog
	require.NoError(t, gateway.Decode(f.gw.Rows(models.TablePaymentLogs), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "pi_123", logs[0].StripePaymentID)
	assert.Equal(t, "ch_456", logs[0].ChargeID)
	assert.Equal(t, "Payment successful", logs[0].Status)
	assert.Equal(t, models.CurrencyUSD, logs[0].Currency)
	assert.True(t, logs[0].Amount.Equal(decimal.NewFromInt(55)))
	assert.JSONEq(t, `{"message":"Payment successful","transactionId":"pi_123"}`, string(logs[0].ResponseData))

	var notes []models.Notification
	require.NoError(t, gateway.Decode(f.gw.Rows(models.TableNotifications), &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, OrderPlacedMessage(id), notes[0].Message)
	assert.False(t, notes[0].Read)
	assert.Equal(t, models.NotificationOrderPlaced, notes[0].Type)
	require.NotNil(t, notes[0].OrderID)
	assert.Equal(t, id, *notes[0].OrderID)

	assert.Empty(t, f.gw.Rows(models.TableCart))

	require.Len(t, f.effects.emails, 1)
	assert.Equal(t, id, f.effects.emails[0].OrderID)
	assert.Equal(t, "55.00", f.effects.emails[0].CartTotal)
	assert.Len(t, f.effects.emails[0].CartList, 2)
	require.Len(t, f.effects.pushes, 1)
	assert.Equal(t, id, f.effects.pushes[0].OrderID)
}

func TestPlaceOrderFreeShippingAndPending(t *testing.T) {
	f := newFixture(t)
	f.seedScenarioA()

	_, err := f.orch.PlaceOrder(context.Background(), f.user, placementFor(models.ShippingFree), Confirmation{PaymentStatus: "requires_action"})
	require.NoError(t, err)
	f.orch.Wait()

	var order models.Order
	require.NoError(t, gateway.Decode(f.gw.Rows(models.TableOrders)[0], &order))
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(25)))
	assert.False(t, order.OrderDate.Before(fixedNow.AddDate(0, 0, 7)))
	assert.False(t, order.OrderDate.After(fixedNow.AddDate(0, 0, 23)))
}

func TestDeliveryEstimateBounds(t *testing.T) {
	low := NewOrchestrator(nil, nil, nil, zerolog.Nop(), WithRandom(func(int) int { return 0 }))
	high := NewOrchestrator(nil, nil, nil, zerolog.Nop(), WithRandom(func(n int) int { return n - 1 }))

	assert.Equal(t, fixedNow.AddDate(0, 0, 7), low.deliveryEstimate(fixedNow, models.ShippingFree))
	assert.Equal(t, fixedNow.AddDate(0, 0, 23), high.deliveryEstimate(fixedNow, models.ShippingFree))
	assert.Equal(t, fixedNow.AddDate(0, 0, 1), low.deliveryEstimate(fixedNow, models.ShippingExpress))
	assert.Equal(t, fixedNow.AddDate(0, 0, 3), high.deliveryEstimate(fixedNow, models.ShippingExpress))
}

func TestPlaceOrderEmptyCartWritesNothing(t *testing.T) {
	f := newFixture(t)

	id, err := f.orch.PlaceOrder(context.Background(), f.user, placementFor(models.ShippingExpress), paid())
	assert.Zero(t, id)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Zero(t, f.gw.writes)
	assert.Empty(t, f.effects.emails)
}

func TestPlaceOrderRequiresUser(t *testing.T) {
	f := newFixture(t)
	f.seedScenarioA()

	_, err := f.orch.PlaceOrder(context.Background(), nil, placementFor(models.ShippingExpress), paid())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, f.gw.writes)
}

func TestCriticalStepFailures(t *testing.T) {
	cases := []struct {
		table      string
		sentinel   error
		wantOrder  bool
		orderCount int
	}{
		{models.TableOrders, ErrOrderInsertFailed, false, 0},
		{models.TableOrderItems, ErrOrderItemsInsertFailed, true, 1},
		{models.TablePaymentLogs, ErrPaymentLogInsertFailed, true, 1},
	}
	for _, tc := range cases {
		t.Run(tc.table, func(t *testing.T) {
			f := newFixture(t)
			f.seedScenarioA()
			cause := errors.New("write rejected")
			f.gw.fail[tc.table] = cause

			id, err := f.orch.PlaceOrder(context.Background(), f.user, placementFor(models.ShippingExpress), paid())
			f.orch.Wait()

			assert.Zero(t, id)
			assert.ErrorIs(t, err, tc.sentinel)
			assert.ErrorIs(t, err, cause)
			assert.True(t, apperr.Is(err, apperr.KindRemoteWrite))

			var se *StepError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tc.wantOrder, se.OrderID != 0)

			assert.Len(t, f.gw.Rows(models.TableOrders), tc.orderCount)
			assert.Len(t, f.gw.Rows(models.TableCart), 2, "cart must survive a failed placement")
			assert.Empty(t, f.gw.Rows(models.TableNotifications))
			assert.Empty(t, f.effects.emails)
		})
	}
}

func TestBestEffortStepFailuresDoNotFailPlacement(t *testing.T) {
	f := newFixture(t)
	f.seedScenarioA()
	f.effects.emailErr = errors.New("smtp down")
	f.effects.pushErr = errors.New("push down")
	f.gw.fail[models.TableNotifications] = errors.New("notifications unavailable")

	id, err := f.orch.PlaceOrder(context.Background(), f.user, placementFor(models.ShippingExpress), paid())
	require.NoError(t, err)
	f.orch.Wait()

	assert.NotZero(t, id)
	assert.Len(t, f.gw.Rows(models.TableOrders), 1)
	assert.Len(t, f.gw.Rows(models.TableOrderItems), 2)
	assert.Empty(t, f.gw.Rows(models.TableCart))
	assert.Len(t, f.effects.emails, 1)
}

func TestCartClearFailureStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.seedScenarioA()
	f.gw.fail[models.TableCart] = errors.New("delete refused")

	id, err := f.orch.PlaceOrder(context.Background(), f.user, placementFor(models.ShippingExpress), paid())
	require.NoError(t, err)
	f.orch.Wait()
	assert.NotZero(t, id)
	assert.Len(t, f.gw.Rows(models.TableCart), 2)
}

func TestSuccessiveOrdersGetDistinctTracking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		f.seedScenarioA()
		_, err := f.orch.PlaceOrder(ctx, f.user, placementFor(models.ShippingExpress), paid())
		require.NoError(t, err)
	}
	f.orch.Wait()

	for _, row := range f.gw.Rows(models.TableOrders) {
		code := row["tracking_number"].(string)
		assert.False(t, seen[code])
		seen[code] = true
	}
	assert.Len(t, seen, 5)
}

func TestOrdersAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedScenarioA()
	first, err := f.orch.PlaceOrder(ctx, f.user, placementFor(models.ShippingExpress), paid())
	require.NoError(t, err)
	f.seedScenarioA()
	second, err := f.orch.PlaceOrder(ctx, f.user, placementFor(models.ShippingFree), paid())
	require.NoError(t, err)
	f.orch.Wait()

	orders, err := f.orch.Orders(ctx, "u-1", 0, 20)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second, orders[0].ID)
	assert.Equal(t, first, orders[1].ID)

	order, err := f.orch.Get(ctx, "u-1", first)
	require.NoError(t, err)
	assert.Len(t, order.Items, 2)

	_, err = f.orch.Get(ctx, "u-2", first)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	none, err := f.orch.Orders(ctx, "", 0, 20)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPaymentLogRecordsChargedAmount(t *testing.T) {
	f := newFixture(t)
	f.gw.Seed(models.TableCart,
		gateway.Row{"user_id": "u-1", "product_id": int64(1), "quantity": 1, "amount": decimal.RequireFromString("10.49")},
	)
	pay := paid()
	pay.Amount = decimal.NewFromInt(10)

	_, err := f.orch.PlaceOrder(context.Background(), f.user, placementFor(models.ShippingFree), pay)
	require.NoError(t, err)
	f.orch.Wait()

	orders := f.gw.Rows(models.TableOrders)
	require.Len(t, orders, 1)
	assert.True(t, decimal.RequireFromString("10.49").Equal(orders[0]["total_amount"].(decimal.Decimal)))

	logs := f.gw.Rows(models.TablePaymentLogs)
	require.Len(t, logs, 1)
	assert.True(t, decimal.NewFromInt(10).Equal(logs[0]["amount"].(decimal.Decimal)))
}

// racedTracking hides existing orders from the first few tracking lookups,
// as if another request inserted the same code after the check.
type racedTracking struct {
	gateway.Gateway
	blind     atomic.Int32
	conflicts atomic.Int32
}

func (r *racedTracking) Select(ctx context.Context, q gateway.Query) ([]gateway.Row, error) {
	if q.Table == models.TableOrders && r.blind.Add(-1) >= 0 {
		return nil, nil
	}
	return r.Gateway.Select(ctx, q)
}

func (r *racedTracking) Insert(ctx context.Context, table string, row gateway.Row) (gateway.Row, error) {
	out, err := r.Gateway.Insert(ctx, table, row)
	if errors.Is(err, gateway.ErrConflict) {
		r.conflicts.Add(1)
	}
	return out, err
}

// intn draws "ORD-AAAAAA" until the first conflict and "ORD-BBBBBB" after.
func (r *racedTracking) intn(int) int {
	return int(r.conflicts.Load())
}

func newRacedOrchestrator(f *fixture, blind int32, opts ...Option) (*racedTracking, *Orchestrator) {
	rg := &racedTracking{Gateway: f.gw}
	rg.blind.Store(blind)
	opts = append([]Option{WithClock(func() time.Time { return fixedNow }), WithRandom(rg.intn)}, opts...)
	return rg, NewOrchestrator(rg, cart.NewManager(rg, zerolog.Nop()), f.effects, zerolog.Nop(), opts...)
}

func TestTrackingConflictOnInsertRedraws(t *testing.T) {
	f := newFixture(t)
	f.seedScenarioA()
	f.gw.Seed(models.TableOrders, gateway.Row{"user_id": "u-9", "tracking_number": "ORD-AAAAAA"})
	rg, orch := newRacedOrchestrator(f, 1)

	id, err := orch.PlaceOrder(context.Background(), f.user, placementFor(models.ShippingExpress), paid())
	require.NoError(t, err)
	orch.Wait()

	assert.EqualValues(t, 1, rg.conflicts.Load())
	orders := f.gw.Rows(models.TableOrders)
	require.Len(t, orders, 2)
	assert.Equal(t, id, orders[1]["id"])
	assert.Equal(t, "ORD-BBBBBB", orders[1]["tracking_number"])
	assert.Len(t, f.gw.Rows(models.TableOrderItems), 2)
	assert.Len(t, f.gw.Rows(models.TablePaymentLogs), 1)
}

func TestTrackingExhaustedAfterInsertConflictIsConflict(t *testing.T) {
	f := newFixture(t)
	f.seedScenarioA()
	f.gw.Seed(models.TableOrders, gateway.Row{"user_id": "u-9", "tracking_number": "ORD-AAAAAA"})
	// Every draw is ORD-AAAAAA: the first check is blinded, the redraws are not.
	rg := &racedTracking{Gateway: f.gw}
	rg.blind.Store(1)
	orch := NewOrchestrator(rg, cart.NewManager(rg, zerolog.Nop()), f.effects, zerolog.Nop(),
		WithClock(func() time.Time { return fixedNow }),
		WithRandom(func(int) int { return 0 }),
		WithTrackingAttempts(3))

	id, err := orch.PlaceOrder(context.Background(), f.user, placementFor(models.ShippingExpress), paid())
	orch.Wait()
	require.Error(t, err)
	assert.Zero(t, id)
	assert.ErrorIs(t, err, ErrTrackingCodeExhausted)
	assert.NotErrorIs(t, err, ErrOrderInsertFailed)
	var stepErr *StepError
	assert.False(t, errors.As(err, &stepErr))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, http.StatusConflict, apperr.HTTPStatus(err))

	assert.Len(t, f.gw.Rows(models.TableOrders), 1)
	assert.Empty(t, f.gw.Rows(models.TableOrderItems))
	assert.Len(t, f.gw.Rows(models.TableCart), 2)
}
