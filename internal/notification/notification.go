// Package notification reads the notification rows written at checkout.
package notification

import (
	"context"

	"github.com/01moynul/storefront-go/internal/apperr"
	"github.com/01moynul/storefront-go/internal/gateway"
	"github.com/01moynul/storefront-go/internal/models"
	"github.com/rs/zerolog"
)

const (
	MsgMarkedRead    = "Notification marked as read"
	MsgNotFound      = "Notification not found or you do not have permission to update it"
	MsgNotLoggedIn   = "User not logged in"
	MsgUpdateFailure = "Failed to update notification"
)

type Reader struct {
	gw     gateway.Gateway
	logger zerolog.Logger
}

func NewReader(gw gateway.Gateway, logger zerolog.Logger) *Reader {
	return &Reader{gw: gw, logger: logger.With().Str("component", "notifications").Logger()}
}

// List returns the user's notifications, newest first, within the inclusive
// range [from, to].
func (r *Reader) List(ctx context.Context, userID string, from, to int) ([]models.Notification, error) {
	out := []models.Notification{}
	if userID == "" {
		return out, nil
	}

	rows, err := r.gw.Select(ctx, gateway.From(models.TableNotifications).
		Where(gateway.Eq("user_id", userID)).
		OrderBy("id", true).
		Range(from, to))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "notification.list", "Database query failed", err)
	}
	if err := gateway.Decode(rows, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead flags one notification as read. Rows of other users are never
// touched and are reported the same as missing ones.
func (r *Reader) MarkRead(ctx context.Context, userID string, id int64) models.Result {
	if userID == "" {
		return models.Fail(MsgNotLoggedIn)
	}

	n, err := r.gw.Update(ctx, models.TableNotifications,
		gateway.Row{"read": true},
		gateway.Eq("id", id), gateway.Eq("user_id", userID))
	if err != nil {
		r.logger.Error().Err(err).Int64("notification_id", id).Msg("mark read failed")
		return models.Fail(MsgUpdateFailure)
	}
	if n == 0 {
		return models.Fail(MsgNotFound)
	}
	return models.OK(MsgMarkedRead)
}
