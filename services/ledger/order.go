package ledger

import (
	"context"

	"sundayschool-points/pkg/db/option"
	"sundayschool-points/pkg/errutil"
	"sundayschool-points/services/ledger/event"

	"gorm.io/gorm"
)

// applyOrder drives the per-order state machine:
//
//	none -> pending -> approved | cancelled | rejected
//
// Repeating the transition an order already made is a duplicate. Anything
// else out of a terminal state is rejected.
func (s *Service) applyOrder(ctx context.Context, tx *gorm.DB, bal *StudentPointsBalance, req DeltaRequest) (*Result, error) {
	orderID := req.Event.Reference()
	target := orderStatusFor(req.Event)
	key := event.IdempotencyKey(req.Event)

	hold, err := s.holds.WithTrx(tx).FindOne(ctx, &PointsOrderHold{OrderID: orderID}, option.WithLockingUpdate())
	if err != nil {
		return nil, err
	}

	if hold != nil && hold.UserID != req.UserID {
		return nil, ErrInvalidOrderTransition.(errutil.BaseError).With(errutil.WithDetails(errutil.Detail{
			Field:   "order_id",
			Message: "order belongs to another user",
		}))
	}

	switch {
	case hold == nil && target == OrderPending:
		// first sight of the order
	case hold == nil:
		return nil, invalidTransition(orderID, "", target)
	case hold.Status == target:
		prior, err := s.transactions.WithTrx(tx).FindOne(ctx, &PointsTransaction{UserID: req.UserID, IdempotencyKey: &key})
		if err != nil {
			return nil, err
		}
		if prior == nil {
			return nil, errutil.Internal("order transition has no transaction row", nil)
		}
		return &Result{Transaction: prior, Balance: bal, Duplicate: true}, nil
	case hold.Status.Terminal(), target == OrderPending:
		return nil, invalidTransition(orderID, hold.Status, target)
	}

	entry := s.newEntry(req, key)
	if target == OrderPending {
		ev := req.Event.(event.OrderPlaced)
		if err := s.placeOrder(ctx, tx, bal, ev, req, entry); err != nil {
			return nil, err
		}
	} else {
		if err := s.resolveOrder(ctx, tx, bal, hold, target, entry); err != nil {
			return nil, err
		}
	}

	if err := s.append(ctx, tx, bal, entry); err != nil {
		return nil, err
	}
	return &Result{Transaction: entry, Balance: bal}, nil
}

// placeOrder moves N points from available to suspended.
func (s *Service) placeOrder(ctx context.Context, tx *gorm.DB, bal *StudentPointsBalance, ev event.OrderPlaced, req DeltaRequest, entry *PointsTransaction) error {
	n := ev.Points
	if bal.AvailablePoints < n {
		return insufficient(bal.AvailablePoints, n)
	}

	bal.AvailablePoints -= n
	bal.SuspendedPoints += n
	bal.TotalDeducted += n
	entry.Points = -n
	mergeMetadata(entry, map[string]any{"suspended_points": n})

	now := s.clock()
	hold := &PointsOrderHold{
		OrderID:        ev.OrderID,
		UserID:         req.UserID,
		ChurchID:       req.ChurchID,
		Status:         OrderPending,
		OriginalPoints: n,
		HeldPoints:     n,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return s.holds.WithTrx(tx).Create(ctx, hold)
}

// resolveOrder releases whatever is still held for a pending order. Approval
// turns it into used points; cancellation and rejection return it to
// available and undo the matching deduction.
func (s *Service) resolveOrder(ctx context.Context, tx *gorm.DB, bal *StudentPointsBalance, hold *PointsOrderHold, target OrderStatus, entry *PointsTransaction) error {
	held := hold.HeldPoints
	if bal.SuspendedPoints < held {
		return errutil.Internal("suspended points lower than order hold", nil)
	}

	bal.SuspendedPoints -= held
	switch target {
	case OrderApproved:
		bal.UsedPoints += held
		hold.UsedPoints += held
		entry.Points = 0
	case OrderCancelled, OrderRejected:
		bal.AvailablePoints += held
		bal.TotalDeducted -= held
		hold.ReturnedPoints += held
		entry.Points = held
	}

	now := s.clock()
	hold.HeldPoints = 0
	hold.Status = target
	hold.UpdatedAt = now
	hold.ResolvedAt = &now

	mergeMetadata(entry, map[string]any{
		"released_points": held,
		"revoked_points":  hold.RevokedPoints,
		"original_points": hold.OriginalPoints,
	})

	return tx.WithContext(ctx).Save(hold).Error
}
