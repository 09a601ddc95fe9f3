package functions

import (
	"context"

	"github.com/01moynul/storefront-go/internal/models"
)

// OrderEmail is the payload of the order confirmation email.
type OrderEmail struct {
	UserName  string            `json:"userName"`
	UserEmail string            `json:"userEmail"`
	CartList  []models.CartLine `json:"cartList"`
	Address   models.Address    `json:"address"`
	CartTotal string            `json:"cartTotal"`
	OrderID   int64             `json:"orderId"`
	OrderDate string            `json:"orderDate"`
}

// Push is the payload of a push notification.
type Push struct {
	UserID  string `json:"userId"`
	OrderID int64  `json:"orderId"`
	Title   string `json:"title"`
	Body    string `json:"body"`
}

// Notifier sends the post-order side effects. Failures are logged and
// returned; callers treat them as non-fatal.
type Notifier struct {
	client        *Client
	emailFunction string
	pushFunction  string
}

func NewNotifier(client *Client, emailFunction, pushFunction string) *Notifier {
	return &Notifier{client: client, emailFunction: emailFunction, pushFunction: pushFunction}
}

func (n *Notifier) SendOrderEmail(ctx context.Context, email OrderEmail) error {
	if _, err := n.client.Invoke(ctx, n.emailFunction, email, nil); err != nil {
		n.client.logger.Error().Err(err).Int64("order_id", email.OrderID).Msg("order email failed")
		return err
	}
	return nil
}

func (n *Notifier) SendPush(ctx context.Context, push Push) error {
	if _, err := n.client.Invoke(ctx, n.pushFunction, push, nil); err != nil {
		n.client.logger.Error().Err(err).Int64("order_id", push.OrderID).Msg("push notification failed")
		return err
	}
	return nil
}
