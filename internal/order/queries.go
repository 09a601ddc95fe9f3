package order

import (
	"context"
	"errors"

	"github.com/01moynul/storefront-go/internal/apperr"
	"github.com/01moynul/storefront-go/internal/gateway"
	"github.com/01moynul/storefront-go/internal/models"
)

// Orders lists the user's orders, newest first, within the inclusive range.
func (o *Orchestrator) Orders(ctx context.Context, userID string, from, to int) ([]models.Order, error) {
	orders := []models.Order{}
	if userID == "" {
		return orders, nil
	}

	rows, err := o.gw.Select(ctx, gateway.From(models.TableOrders).
		Where(gateway.Eq("user_id", userID)).
		OrderBy("id", true).
		Range(from, to))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "order.list", "Failed to load orders", err)
	}
	if err := gateway.Decode(rows, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Get returns one order with its items. Orders of other users are reported
// as not found.
func (o *Orchestrator) Get(ctx context.Context, userID string, orderID int64) (*models.Order, error) {
	row, err := gateway.Single(ctx, o.gw, gateway.From(models.TableOrders).
		Where(gateway.Eq("id", orderID), gateway.Eq("user_id", userID)).
		With(gateway.EmbedMany(models.TableOrderItems, "order_id")))
	if errors.Is(err, gateway.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "order.get", "Failed to load order", err)
	}

	order := &models.Order{}
	if err := gateway.Decode(row, order); err != nil {
		return nil, err
	}
	if order.Items == nil {
		order.Items = []models.OrderItem{}
	}
	return order, nil
}
