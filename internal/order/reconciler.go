package order

import (
	"context"
	"time"

	"github.com/01moynul/storefront-go/internal/gateway"
	"github.com/01moynul/storefront-go/internal/models"
	"github.com/rs/zerolog"
)

// reconcileWindow is how many of the most recent orders each pass checks.
const reconcileWindow = 200

// Reconciler finds orders left without items by a placement that failed
// after the order row was written.
type Reconciler struct {
	gw     gateway.Gateway
	logger zerolog.Logger
}

func NewReconciler(gw gateway.Gateway, logger zerolog.Logger) *Reconciler {
	return &Reconciler{gw: gw, logger: logger.With().Str("component", "reconciler").Logger()}
}

// Orphans returns the ids of recent orders that have no order_items rows.
func (r *Reconciler) Orphans(ctx context.Context) ([]int64, error) {
	orders, err := r.gw.Select(ctx, gateway.From(models.TableOrders).
		Select("id").
		OrderBy("id", true).
		Range(0, reconcileWindow-1))
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		if id, ok := gateway.ID(o, "id"); ok {
			ids = append(ids, id)
		}
	}

	items, err := r.gw.Select(ctx, gateway.From(models.TableOrderItems).
		Select("order_id").
		Where(gateway.In("order_id", ids)))
	if err != nil {
		return nil, err
	}
	withItems := make(map[int64]bool, len(items))
	for _, it := range items {
		if id, ok := gateway.ID(it, "order_id"); ok {
			withItems[id] = true
		}
	}

	var orphans []int64
	for _, id := range ids {
		if !withItems[id] {
			orphans = append(orphans, id)
		}
	}
	return orphans, nil
}

// Run checks for orphans every interval until ctx ends.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", interval).Msg("background worker started: monitoring for orders without items")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			orphans, err := r.Orphans(ctx)
			if err != nil {
				r.logger.Error().Err(err).Msg("reconcile orders")
				continue
			}
			if len(orphans) > 0 {
				r.logger.Warn().Ints64("order_ids", orphans).Msg("orders without items")
			}
		}
	}
}
