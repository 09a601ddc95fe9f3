// Package identity maps session credentials onto user rows, provisioning the
// row on first sight, and tracks the current identity of each session.
package identity

import (
	"context"
	"errors"

	"github.com/01moynul/storefront-go/internal/apperr"
	"github.com/01moynul/storefront-go/internal/auth"
	"github.com/01moynul/storefront-go/internal/gateway"
	"github.com/01moynul/storefront-go/internal/models"
	"github.com/rs/zerolog"
)

// Resolver is stateless: every call decodes the credential and reads (or
// creates) the user row.
type Resolver struct {
	gw      gateway.Gateway
	decoder *auth.Decoder
	logger  zerolog.Logger
}

func NewResolver(gw gateway.Gateway, decoder *auth.Decoder, logger zerolog.Logger) *Resolver {
	return &Resolver{gw: gw, decoder: decoder, logger: logger.With().Str("component", "identity").Logger()}
}

func (r *Resolver) Resolve(ctx context.Context, credential string) (*models.User, error) {
	claims, err := r.Decode(credential)
	if err != nil {
		return nil, err
	}
	return r.Lookup(ctx, claims)
}

func (r *Resolver) Decode(credential string) (*auth.Claims, error) {
	claims, err := r.decoder.Decode(credential)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindAuth, "identity.decode", "Invalid or expired credential", err)
	}
	return claims, nil
}

// Lookup finds the user row for claims by email and creates it when absent.
func (r *Resolver) Lookup(ctx context.Context, claims *auth.Claims) (*models.User, error) {
	user, err := r.findByEmail(ctx, claims.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gateway.ErrNoRows) {
		r.logger.Error().Err(err).Str("email", claims.Email).Msg("user lookup failed")
		return nil, apperr.Wrap(apperr.KindInternal, "identity.lookup", "Could not resolve user", err)
	}

	row, err := r.gw.Insert(ctx, models.TableUsers, gateway.Row{
		"id":      claims.Subject,
		"email":   claims.Email,
		"name":    claims.UserMetadata.FullName,
		"profile": claims.UserMetadata.AvatarURL,
	})
	if errors.Is(err, gateway.ErrConflict) {
		// Provisioned concurrently by another request.
		return r.findByEmail(ctx, claims.Email)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("email", claims.Email).Msg("user provisioning failed")
		return nil, apperr.Wrap(apperr.KindRemoteWrite, "identity.provision", "Could not create user", err)
	}

	r.logger.Info().Str("user_id", claims.Subject).Msg("user provisioned")
	user = &models.User{}
	if err := gateway.Decode(row, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *Resolver) findByEmail(ctx context.Context, email string) (*models.User, error) {
	row, err := gateway.Single(ctx, r.gw, gateway.From(models.TableUsers).Where(gateway.Eq("email", email)))
	if err != nil {
		return nil, err
	}
	user := &models.User{}
	if err := gateway.Decode(row, user); err != nil {
		return nil, err
	}
	return user, nil
}
