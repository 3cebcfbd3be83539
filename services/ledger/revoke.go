package ledger

import (
	"context"

	"sundayschool-points/pkg/db/option"
	"sundayschool-points/services/ledger/event"

	"gorm.io/gorm"
)

func oldestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("order_id ASC")
}

// revoke takes back the points of an earlier activity completion. Available
// points are used first, then points suspended on pending orders (oldest
// order first). What cannot be recovered is recorded as a deficit.
func (s *Service) revoke(ctx context.Context, tx *gorm.DB, bal *StudentPointsBalance, ev event.ActivityRevoked, entry *PointsTransaction) error {
	activityID := ev.ActivityID
	completion, err := s.transactions.WithTrx(tx).FindOne(ctx, &PointsTransaction{
		UserID:     entry.UserID,
		Type:       event.ActivityCompletion,
		ActivityID: &activityID,
	})
	if err != nil {
		return err
	}
	if completion == nil {
		return ErrNothingToRevoke
	}

	amount := completion.Points
	fromAvailable := min(amount, bal.AvailablePoints)
	rest := amount - fromAvailable

	var fromSuspended int64
	if rest > 0 && bal.SuspendedPoints > 0 {
		holds, err := s.holds.WithTrx(tx).Find(ctx,
			&PointsOrderHold{UserID: entry.UserID, Status: OrderPending},
			option.WithLockingUpdate(),
			oldestFirst,
		)
		if err != nil {
			return err
		}

		now := s.clock()
		for _, h := range holds {
			if rest == 0 {
				break
			}
			take := min(h.HeldPoints, rest)
			if take == 0 {
				continue
			}
			h.HeldPoints -= take
			h.RevokedPoints += take
			h.UpdatedAt = now
			if err := tx.WithContext(ctx).Save(h).Error; err != nil {
				return err
			}
			rest -= take
			fromSuspended += take
		}
	}
	deficit := rest

	bal.AvailablePoints -= fromAvailable
	bal.SuspendedPoints -= fromSuspended
	bal.TotalDeducted += fromAvailable
	bal.DeficitPoints += deficit

	entry.Points = -fromAvailable
	entry.Deficit = deficit
	mergeMetadata(entry, map[string]any{
		"completion_id":  completion.ID,
		"revoked_points": amount,
		"from_available": fromAvailable,
		"from_suspended": fromSuspended,
		"deficit":        deficit,
	})
	return nil
}
