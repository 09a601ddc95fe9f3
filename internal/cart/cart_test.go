package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/01moynul/storefront-go/internal/gateway"
	"github.com/01moynul/storefront-go/internal/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCart() (*Manager, *gateway.MemoryGateway) {
	gw := gateway.NewMemoryGateway().Unique(models.TableCart, "user_id", "product_id")
	gw.Seed(models.TableProducts,
		gateway.Row{"name": "A", "amount": decimal.RequireFromString("10"), "rating": 4.5, "is_active": true},
		gateway.Row{"name": "B", "amount": decimal.RequireFromString("5"), "rating": 3.0, "is_active": true},
	)
	return NewManager(gw, zerolog.Nop()), gw
}

func TestAddTwiceIncrements(t *testing.T) {
	m, gw := newCart()
	ctx := context.Background()

	assert.Equal(t, models.OK(MsgAdded), m.Add(ctx, "u-1", 1))
	assert.Equal(t, models.OK(MsgIncremented), m.Add(ctx, "u-1", 1))

	rows := gw.Rows(models.TableCart)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0]["quantity"])

	lines, err := m.List(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.True(t, lines[0].Amount.Equal(decimal.NewFromInt(10)))
	require.NotNil(t, lines[0].Product)
	assert.Equal(t, "A", lines[0].Product.Name)
}

func TestAddRequiresUserAndProduct(t *testing.T) {
	m, gw := newCart()
	ctx := context.Background()

	assert.Equal(t, models.Fail(MsgNotLoggedIn), m.Add(ctx, "", 1))
	assert.Equal(t, models.Fail(MsgProductNotFound), m.Add(ctx, "u-1", 99))
	assert.Empty(t, gw.Rows(models.TableCart))
}

func TestAdjustQuantity(t *testing.T) {
	m, gw := newCart()
	ctx := context.Background()

	assert.Equal(t, models.Fail(MsgNotInCart), m.AdjustQuantity(ctx, "u-1", 1, 1))

	m.Add(ctx, "u-1", 1)
	assert.Equal(t, models.Fail(MsgQuantityTooLow), m.AdjustQuantity(ctx, "u-1", 1, -1))
	assert.Equal(t, 1, gw.Rows(models.TableCart)[0]["quantity"])

	assert.Equal(t, models.OK(MsgUpdated), m.AdjustQuantity(ctx, "u-1", 1, 1))
	assert.Equal(t, models.OK(MsgUpdated), m.AdjustQuantity(ctx, "u-1", 1, -1))
	assert.Equal(t, 1, gw.Rows(models.TableCart)[0]["quantity"])

	assert.Equal(t, models.Fail(MsgNotLoggedIn), m.AdjustQuantity(ctx, "", 1, 1))
}

func TestRemoveIsScopedToOwner(t *testing.T) {
	m, gw := newCart()
	ctx := context.Background()
	m.Add(ctx, "u-1", 1)
	lineID, _ := gateway.ID(gw.Rows(models.TableCart)[0], "id")

	assert.Equal(t, models.Fail(MsgNotInCart), m.Remove(ctx, "u-2", lineID))
	assert.Len(t, gw.Rows(models.TableCart), 1)

	assert.Equal(t, models.OK(MsgRemoved), m.Remove(ctx, "u-1", lineID))
	assert.Empty(t, gw.Rows(models.TableCart))
}

func TestListOrderAndClear(t *testing.T) {
	m, _ := newCart()
	ctx := context.Background()
	m.Add(ctx, "u-1", 1)
	m.Add(ctx, "u-1", 2)
	m.Add(ctx, "u-2", 2)

	lines, err := m.List(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, int64(2), lines[0].ProductID)
	assert.Equal(t, int64(1), lines[1].ProductID)

	empty, err := m.List(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	require.NoError(t, m.ClearAll(ctx, "u-1"))
	lines, err = m.List(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, lines)

	lines, err = m.List(ctx, "u-2")
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

type brokenCart struct {
	*gateway.MemoryGateway
}

func (brokenCart) Update(context.Context, string, gateway.Row, ...gateway.Filter) (int64, error) {
	return 0, errors.New("write refused")
}

func TestWriteFailureIsReported(t *testing.T) {
	_, gw := newCart()
	m := NewManager(brokenCart{gw}, zerolog.Nop())
	ctx := context.Background()

	assert.Equal(t, models.OK(MsgAdded), m.Add(ctx, "u-1", 1))
	assert.Equal(t, models.Fail(MsgCartWriteFailure), m.Add(ctx, "u-1", 1))
}

func TestCompute(t *testing.T) {
	lines := []models.CartLine{
		{ProductID: 1, Quantity: 2, Amount: decimal.NewFromInt(10)},
		{ProductID: 2, Quantity: 1, Amount: decimal.NewFromInt(5)},
	}

	express := Compute(lines, models.ShippingExpress)
	assert.True(t, express.Subtotal.Equal(decimal.NewFromInt(25)))
	assert.True(t, express.ShippingFee.Equal(decimal.NewFromInt(30)))
	assert.True(t, express.Total.Equal(decimal.NewFromInt(55)))
	assert.Equal(t, 3, express.Items)

	free := Compute(lines, models.ShippingFree)
	assert.True(t, free.Total.Equal(decimal.NewFromInt(25)))
}

// staleCartRead misses the first cart lookup, as if another request created
// the line right after it.
type staleCartRead struct {
	gateway.Gateway
	missed bool
}

func (s *staleCartRead) Select(ctx context.Context, q gateway.Query) ([]gateway.Row, error) {
	if q.Table == models.TableCart && !s.missed {
		s.missed = true
		return nil, nil
	}
	return s.Gateway.Select(ctx, q)
}

func TestAddRacingInsertIncrementsExistingLine(t *testing.T) {
	_, mem := newCart()
	mem.Seed(models.TableCart, gateway.Row{"user_id": "u-1", "product_id": int64(1), "quantity": 1, "amount": decimal.NewFromInt(10)})
	gw := &staleCartRead{Gateway: mem}
	m := NewManager(gw, zerolog.Nop())

	assert.Equal(t, models.OK(MsgIncremented), m.Add(context.Background(), "u-1", 1))
	assert.True(t, gw.missed)

	rows := mem.Rows(models.TableCart)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0]["quantity"])
}
