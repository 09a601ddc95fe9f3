package order

import (
	"context"
	"testing"

	"github.com/01moynul/storefront-go/internal/gateway"
	"github.com/01moynul/storefront-go/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrphans(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	gw.Seed(models.TableOrders,
		gateway.Row{"user_id": "u-1", "tracking_number": "ORD-AAAAA1"},
		gateway.Row{"user_id": "u-1", "tracking_number": "ORD-AAAAA2"},
		gateway.Row{"user_id": "u-2", "tracking_number": "ORD-AAAAA3"},
	)
	gw.Seed(models.TableOrderItems,
		gateway.Row{"order_id": int64(1), "product_id": int64(1), "quantity": 1},
		gateway.Row{"order_id": int64(3), "product_id": int64(1), "quantity": 2},
	)

	orphans, err := NewReconciler(gw, zerolog.Nop()).Orphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, orphans)
}

func TestOrphansEmpty(t *testing.T) {
	orphans, err := NewReconciler(gateway.NewMemoryGateway(), zerolog.Nop()).Orphans(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestReconcilerRunStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, NewReconciler(gateway.NewMemoryGateway(), zerolog.Nop()).Run(ctx, 1))
}
