package order

import (
	"fmt"

	"github.com/01moynul/storefront-go/internal/apperr"
)

var (
	ErrNotAuthenticated      = apperr.New(apperr.KindAuth, "order.place", "User not logged in")
	ErrEmptyCart             = apperr.New(apperr.KindValidation, "order.place", "Cart is empty")
	ErrTrackingCodeExhausted = apperr.New(apperr.KindConflict, "order.tracking", "Could not allocate a tracking number")

	ErrOrderInsertFailed      = apperr.New(apperr.KindRemoteWrite, "order.insert", "Failed to create order")
	ErrOrderItemsInsertFailed = apperr.New(apperr.KindRemoteWrite, "order.items", "Failed to save order items")
	ErrPaymentLogInsertFailed = apperr.New(apperr.KindRemoteWrite, "order.payment_log", "Failed to record payment")

	ErrOrderNotFound = apperr.New(apperr.KindNotFound, "order.get", "Order not found")
)

// StepError reports a failed critical step. It matches the step's sentinel
// and the underlying cause through errors.Is. OrderID is set once the order
// row exists.
type StepError struct {
	Step     string
	OrderID  int64
	Err      error
	sentinel error
}

func (e *StepError) Error() string {
	if e.OrderID != 0 {
		return fmt.Sprintf("place order %d: %s: %v", e.OrderID, e.Step, e.Err)
	}
	return fmt.Sprintf("place order: %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{e.sentinel, e.Err}
}
