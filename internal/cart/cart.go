// Package cart manages the per-user cart lines. Mutations report their
// outcome as a models.Result instead of an error.
package cart

import (
	"context"
	"errors"

	"github.com/01moynul/storefront-go/internal/gateway"
	"github.com/01moynul/storefront-go/internal/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	MsgNotLoggedIn      = "User not logged in"
	MsgAdded            = "Product added to cart"
	MsgIncremented      = "Cart quantity updated"
	MsgNotInCart        = "Item not found in cart"
	MsgQuantityTooLow   = "Quantity cannot be less than 1"
	MsgUpdated          = "Cart updated"
	MsgRemoved          = "Item removed from cart"
	MsgProductNotFound  = "Product not found"
	MsgCartUnavailable  = "Cart is unavailable, please try again"
	MsgCartWriteFailure = "Failed to update cart"
)

var productColumns = []string{"id", "name", "banner_url", "amount", "description", "rating"}

type Manager struct {
	gw     gateway.Gateway
	logger zerolog.Logger
}

func NewManager(gw gateway.Gateway, logger zerolog.Logger) *Manager {
	return &Manager{gw: gw, logger: logger.With().Str("component", "cart").Logger()}
}

// List returns the user's lines, newest first, each with its product. An
// empty userID yields an empty cart.
func (m *Manager) List(ctx context.Context, userID string) ([]models.CartLine, error) {
	lines := []models.CartLine{}
	if userID == "" {
		return lines, nil
	}

	rows, err := m.gw.Select(ctx, gateway.From(models.TableCart).
		Where(gateway.Eq("user_id", userID)).
		With(gateway.EmbedOne(models.TableProducts, "product_id", productColumns...)).
		OrderBy("id", true))
	if err != nil {
		return nil, err
	}
	if err := gateway.Decode(rows, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// Add puts one unit of productID in the cart, creating the line with the
// current product price or incrementing an existing line.
func (m *Manager) Add(ctx context.Context, userID string, productID int64) models.Result {
	if userID == "" {
		return models.Fail(MsgNotLoggedIn)
	}
	log := m.logger.With().Str("user_id", userID).Int64("product_id", productID).Logger()

	line, err := m.line(ctx, userID, productID)
	if err != nil && !errors.Is(err, gateway.ErrNoRows) {
		log.Error().Err(err).Msg("load cart line")
		return models.Fail(MsgCartUnavailable)
	}
	if line != nil {
		return m.setQuantity(ctx, log, line, line.Quantity+1, MsgIncremented)
	}

	row, err := gateway.Single(ctx, m.gw, gateway.From(models.TableProducts).
		Select("amount").
		Where(gateway.Eq("id", productID)))
	if errors.Is(err, gateway.ErrNoRows) {
		return models.Fail(MsgProductNotFound)
	}
	if err != nil {
		log.Error().Err(err).Msg("load product price")
		return models.Fail(MsgCartUnavailable)
	}
	var product struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := gateway.Decode(row, &product); err != nil {
		log.Error().Err(err).Msg("decode product price")
		return models.Fail(MsgCartUnavailable)
	}

	_, err = m.gw.Insert(ctx, models.TableCart, gateway.Row{
		"user_id":    userID,
		"product_id": productID,
		"quantity":   1,
		"amount":     product.Amount,
	})
	if errors.Is(err, gateway.ErrConflict) {
		// A concurrent add created the line first.
		line, err = m.line(ctx, userID, productID)
		if err != nil {
			log.Error().Err(err).Msg("reload cart line")
			return models.Fail(MsgCartWriteFailure)
		}
		return m.setQuantity(ctx, log, line, line.Quantity+1, MsgIncremented)
	}
	if err != nil {
		log.Error().Err(err).Msg("insert cart line")
		return models.Fail(MsgCartWriteFailure)
	}
	return models.OK(MsgAdded)
}

// AdjustQuantity changes an existing line by delta. The result may never go
// below one.
func (m *Manager) AdjustQuantity(ctx context.Context, userID string, productID int64, delta int) models.Result {
	if userID == "" {
		return models.Fail(MsgNotLoggedIn)
	}
	log := m.logger.With().Str("user_id", userID).Int64("product_id", productID).Logger()

	line, err := m.line(ctx, userID, productID)
	if errors.Is(err, gateway.ErrNoRows) {
		return models.Fail(MsgNotInCart)
	}
	if err != nil {
		log.Error().Err(err).Msg("load cart line")
		return models.Fail(MsgCartUnavailable)
	}

	qty := line.Quantity + delta
	if qty < 1 {
		return models.Fail(MsgQuantityTooLow)
	}
	return m.setQuantity(ctx, log, line, qty, MsgUpdated)
}

// Remove deletes one line. Only lines owned by userID can be removed.
func (m *Manager) Remove(ctx context.Context, userID string, lineID int64) models.Result {
	if userID == "" {
		return models.Fail(MsgNotLoggedIn)
	}

	n, err := m.gw.Delete(ctx, models.TableCart, gateway.Eq("id", lineID), gateway.Eq("user_id", userID))
	if err != nil {
		m.logger.Error().Err(err).Str("user_id", userID).Int64("line_id", lineID).Msg("delete cart line")
		return models.Fail(MsgCartWriteFailure)
	}
	if n == 0 {
		return models.Fail(MsgNotInCart)
	}
	return models.OK(MsgRemoved)
}

// ClearAll deletes every line of userID.
func (m *Manager) ClearAll(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	_, err := m.gw.Delete(ctx, models.TableCart, gateway.Eq("user_id", userID))
	return err
}

func (m *Manager) line(ctx context.Context, userID string, productID int64) (*models.CartLine, error) {
	row, err := gateway.Single(ctx, m.gw, gateway.From(models.TableCart).
		Select("id", "quantity").
		Where(gateway.Eq("user_id", userID), gateway.Eq("product_id", productID)))
	if err != nil {
		return nil, err
	}
	line := &models.CartLine{}
	if err := gateway.Decode(row, line); err != nil {
		return nil, err
	}
	return line, nil
}

func (m *Manager) setQuantity(ctx context.Context, log zerolog.Logger, line *models.CartLine, qty int, msg string) models.Result {
	if _, err := m.gw.Update(ctx, models.TableCart, gateway.Row{"quantity": qty}, gateway.Eq("id", line.ID)); err != nil {
		log.Error().Err(err).Int64("line_id", line.ID).Msg("update cart quantity")
		return models.Fail(MsgCartWriteFailure)
	}
	return models.OK(msg)
}
