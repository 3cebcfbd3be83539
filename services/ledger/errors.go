package ledger

import (
	"fmt"

	"sundayschool-points/pkg/errutil"
	"sundayschool-points/services/ledger/event"
)

var (
	ErrInsufficientBalance    = errutil.UnprocessableEntity("insufficient available points", nil)
	ErrInvalidOrderTransition = errutil.Conflict("invalid store order transition", nil)
	ErrNothingToRevoke        = errutil.NotFound("no activity completion to revoke", nil)
	ErrConcurrentUpdate       = errutil.Conflict("balance was modified concurrently, retry", nil)
	ErrInvalidRequest         = errutil.ValidationFailed("church id and user id are required", nil)

	ErrUnsupportedEvent = event.ErrUnsupportedEvent
	ErrMissingNote      = event.ErrMissingNote
	ErrInvalidStatus    = event.ErrInvalidStatus
)

func insufficient(available, required int64) error {
	return ErrInsufficientBalance.(errutil.BaseError).With(errutil.WithDetails(errutil.Detail{
		Field:   "available_points",
		Message: fmt.Sprintf("%d available, %d required", available, required),
	}))
}

func invalidTransition(orderID string, from OrderStatus, to OrderStatus) error {
	if from == "" {
		from = "none"
	}
	return ErrInvalidOrderTransition.(errutil.BaseError).With(errutil.WithDetails(errutil.Detail{
		Field:   "order_id",
		Message: fmt.Sprintf("order %s cannot move from %s to %s", orderID, from, to),
	}))
}
