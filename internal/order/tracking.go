package order

import (
	"context"
	"strings"

	"github.com/01moynul/storefront-go/internal/gateway"
	"github.com/01moynul/storefront-go/internal/models"
)

const (
	trackingPrefix   = "ORD-"
	trackingAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	trackingLength   = 6
)

// NewTrackingCode returns "ORD-" followed by six characters drawn with intn
// from A-Z and 0-9.
func NewTrackingCode(intn func(n int) int) string {
	var b strings.Builder
	b.Grow(len(trackingPrefix) + trackingLength)
	b.WriteString(trackingPrefix)
	for i := 0; i < trackingLength; i++ {
		b.WriteByte(trackingAlphabet[intn(len(trackingAlphabet))])
	}
	return b.String()
}

// uniqueTrackingCode draws codes until one is unused, giving up after the
// configured number of attempts.
func (o *Orchestrator) uniqueTrackingCode(ctx context.Context) (string, error) {
	for i := 0; i < o.trackingAttempts; i++ {
		code := NewTrackingCode(o.intn)
		taken, err := o.trackingTaken(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
		o.logger.Debug().Str("tracking_number", code).Msg("tracking number collision")
	}
	return "", ErrTrackingCodeExhausted
}

func (o *Orchestrator) trackingTaken(ctx context.Context, code string) (bool, error) {
	return gateway.Exists(ctx, o.gw, models.TableOrders, gateway.Eq("tracking_number", code))
}
