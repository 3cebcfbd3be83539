package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"sundayschool-points/pkg/config"
	"sundayschool-points/services/ledger/event"
	"sundayschool-points/services/pointsconfig"
	"sundayschool-points/services/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const (
	church  = "church-1"
	student = "student-1"
)

type ruleFunc func(ctx context.Context, in pointsconfig.Input) (pointsconfig.Outcome, error)

func (f ruleFunc) Evaluate(ctx context.Context, in pointsconfig.Input) (pointsconfig.Outcome, error) {
	return f(ctx, in)
}

// tick returns a clock that advances one second per call.
func tick() func() time.Time {
	t := time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newLedgerDB(t *testing.T) *gorm.DB {
	return testutil.NewTestDB(t,
		&PointsTransaction{},
		&StudentPointsBalance{},
		&PointsOrderHold{},
		&pointsconfig.ChurchPointsConfig{},
	)
}

func newTestService(t *testing.T, db *gorm.DB, rules Evaluator) *Service {
	t.Helper()
	svc := NewService(ServiceParams{
		DB:    db,
		Node:  testutil.NewNode(t),
		Rules: rules,
	})
	svc.now = tick()
	return svc
}

// newConfiguredService wires the real rule engine to a church that awards 5
// points for presence and caps teacher adjustments at 50.
func newConfiguredService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := newLedgerDB(t)

	repo := pointsconfig.NewRepository(db)
	require.NoError(t, repo.Upsert(context.Background(), &pointsconfig.ChurchPointsConfig{
		ChurchID:                   church,
		AttendancePointsPresent:    5,
		AttendancePointsLate:       3,
		TripParticipationPoints:    20,
		MaxTeacherAdjustment:       50,
		IsAttendancePointsEnabled:  true,
		IsTripPointsEnabled:        true,
		IsTeacherAdjustmentEnabled: true,
	}))

	conds, err := pointsconfig.NewConditions()
	require.NoError(t, err)

	cfg := &config.Config{}
	engine := pointsconfig.NewEngine(pointsconfig.EngineParams{
		Config:     cfg,
		Repo:       repo,
		Cache:      pointsconfig.NewCache(pointsconfig.CacheParams{Config: cfg}),
		Conditions: conds,
	})
	return newTestService(t, db, engine), db
}

func apply(t *testing.T, svc *Service, ev event.Event) *Result {
	t.Helper()
	return applyAs(t, svc, student, ev)
}

func applyAs(t *testing.T, svc *Service, userID string, ev event.Event) *Result {
	t.Helper()
	res, err := svc.ApplyEvent(context.Background(), ApplyRequest{
		ChurchID: church,
		UserID:   userID,
		ActorID:  "teacher-1",
		Event:    ev,
	})
	require.NoError(t, err)
	return res
}

func applyErr(svc *Service, ev event.Event) error {
	_, err := svc.ApplyEvent(context.Background(), ApplyRequest{
		ChurchID: church,
		UserID:   student,
		Event:    ev,
	})
	return err
}

func balanceOf(t *testing.T, db *gorm.DB) StudentPointsBalance {
	t.Helper()
	return balanceFor(t, db, student)
}

func balanceFor(t *testing.T, db *gorm.DB, userID string) StudentPointsBalance {
	t.Helper()
	var bal StudentPointsBalance
	require.NoError(t, db.Where("user_id = ?", userID).Take(&bal).Error)
	return bal
}

func rowsOf(t *testing.T, db *gorm.DB) []PointsTransaction {
	t.Helper()
	return rowsFor(t, db, student)
}

func rowsFor(t *testing.T, db *gorm.DB, userID string) []PointsTransaction {
	t.Helper()
	var rows []PointsTransaction
	require.NoError(t, db.Where("user_id = ?", userID).Order("sequence ASC").Find(&rows).Error)
	return rows
}

func holdOf(t *testing.T, db *gorm.DB, orderID string) PointsOrderHold {
	t.Helper()
	var hold PointsOrderHold
	require.NoError(t, db.Where("order_id = ?", orderID).Take(&hold).Error)
	return hold
}

func requireConsistent(t *testing.T, db *gorm.DB) {
	t.Helper()
	requireConsistentFor(t, db, student)
}

// requireConsistentFor checks the chain and reconciliation properties of the
// user's log against the stored balance.
func requireConsistentFor(t *testing.T, db *gorm.DB, userID string) {
	t.Helper()
	rows := rowsFor(t, db, userID)
	bal := balanceFor(t, db, userID)

	prevHash := GenesisHash
	var running, sum int64
	for i, row := range rows {
		require.Equal(t, int64(i+1), row.Sequence)
		require.Equal(t, prevHash, row.PreviousHash, "row %d", row.Sequence)
		require.Equal(t, row.GenerateHash(), row.Hash, "row %d", row.Sequence)

		running += row.Points
		require.Equal(t, running, row.BalanceAfter, "row %d", row.Sequence)

		sum += row.Points
		prevHash = row.Hash
	}

	require.Equal(t, sum, bal.AvailablePoints)
	require.Equal(t, bal.TotalEarned-bal.TotalDeducted, sum)
	require.Equal(t, int64(len(rows)), bal.Version)
	require.Equal(t, prevHash, bal.LastHash)
	require.GreaterOrEqual(t, bal.AvailablePoints, int64(0))

	var holds []PointsOrderHold
	require.NoError(t, db.Where("user_id = ?", userID).Find(&holds).Error)
	var pending int64
	for _, h := range holds {
		require.Equal(t, h.OriginalPoints, h.HeldPoints+h.UsedPoints+h.ReturnedPoints+h.RevokedPoints, "order %s", h.OrderID)
		if h.Status == OrderPending {
			pending += h.HeldPoints
		}
	}
	require.Equal(t, pending, bal.SuspendedPoints)
}

func metadataOf(t *testing.T, row *PointsTransaction) map[string]any {
	t.Helper()
	meta := map[string]any{}
	require.NoError(t, json.Unmarshal(row.Metadata, &meta))
	return meta
}

func TestAttendanceAwards(t *testing.T) {
	svc, db := newConfiguredService(t)

	for _, id := range []string{"att-1", "att-2", "att-3"} {
		res := apply(t, svc, event.AttendanceMarked{AttendanceID: id, Status: event.StatusPresent})
		require.False(t, res.Duplicate)
		require.Equal(t, int64(5), res.Transaction.Points)
	}

	bal := balanceOf(t, db)
	require.Equal(t, int64(15), bal.AvailablePoints)
	require.Equal(t, int64(15), bal.TotalEarned)

	rows := rowsOf(t, db)
	require.Len(t, rows, 3)
	for i, row := range rows {
		require.Equal(t, int64(5), row.Points)
		require.Equal(t, int64(5*(i+1)), row.BalanceAfter)
		require.Equal(t, event.Attendance, row.Type)
		require.NotNil(t, row.CreatedBy)
		require.Equal(t, "teacher-1", *row.CreatedBy)
	}
	require.Equal(t, GenesisHash, rows[0].PreviousHash)
	requireConsistent(t, db)
}

func TestAbsentIsSkipped(t *testing.T) {
	svc, db := newConfiguredService(t)

	res := apply(t, svc, event.AttendanceMarked{AttendanceID: "att-1", Status: event.StatusAbsent})
	require.True(t, res.Skipped)
	require.Nil(t, res.Transaction)
	require.Empty(t, rowsOf(t, db))
}

func TestTeacherAdjustment(t *testing.T) {
	svc, db := newConfiguredService(t)
	for _, id := range []string{"att-1", "att-2", "att-3"} {
		apply(t, svc, event.AttendanceMarked{AttendanceID: id, Status: event.StatusPresent})
	}

	err := applyErr(svc, event.TeacherAdjusted{Points: -30, Notes: "broke the rules"})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Len(t, rowsOf(t, db), 3)
	require.Equal(t, int64(15), balanceOf(t, db).AvailablePoints)

	res := apply(t, svc, event.TeacherAdjusted{Points: -10, Notes: "late homework"})
	require.Equal(t, int64(-10), res.Transaction.Points)
	require.Equal(t, int64(5), res.Balance.AvailablePoints)
	require.NotNil(t, res.Transaction.Notes)
	require.Equal(t, "late homework", *res.Transaction.Notes)

	err = applyErr(svc, event.TeacherAdjusted{Points: 5})
	require.ErrorIs(t, err, ErrMissingNote)

	requireConsistent(t, db)
}

func TestTeacherAdjustmentClamped(t *testing.T) {
	svc, db := newConfiguredService(t)

	res := apply(t, svc, event.TeacherAdjusted{Points: 80, Notes: "won the quiz"})
	require.True(t, res.Clamped)
	require.Equal(t, int64(50), res.Transaction.Points)

	meta := metadataOf(t, res.Transaction)
	require.EqualValues(t, 80, meta["requested_points"])
	requireConsistent(t, db)
}

func TestOrderCancelRestoresPoints(t *testing.T) {
	svc, db := newConfiguredService(t)
	apply(t, svc, event.AdminAdjusted{Points: 50, Notes: "opening balance"})

	res := apply(t, svc, event.OrderPlaced{OrderID: "order-1", Points: 20})
	require.Equal(t, int64(-20), res.Transaction.Points)
	require.Equal(t, int64(30), res.Balance.AvailablePoints)
	require.Equal(t, int64(20), res.Balance.SuspendedPoints)
	requireConsistent(t, db)

	res = apply(t, svc, event.OrderCancelled{OrderID: "order-1"})
	require.Equal(t, int64(20), res.Transaction.Points)
	require.Equal(t, int64(50), res.Balance.AvailablePoints)
	require.Zero(t, res.Balance.SuspendedPoints)

	res = apply(t, svc, event.OrderCancelled{OrderID: "order-1"})
	require.True(t, res.Duplicate)
	require.Equal(t, int64(50), balanceOf(t, db).AvailablePoints)
	require.Len(t, rowsOf(t, db), 3)

	hold := holdOf(t, db, "order-1")
	require.Equal(t, OrderCancelled, hold.Status)
	require.Equal(t, int64(20), hold.ReturnedPoints)
	require.NotNil(t, hold.ResolvedAt)

	requireConsistent(t, db)
}

func TestOrderApproveConsumesHold(t *testing.T) {
	svc, db := newConfiguredService(t)
	apply(t, svc, event.AdminAdjusted{Points: 50, Notes: "opening balance"})
	apply(t, svc, event.OrderPlaced{OrderID: "order-1", Points: 20})

	res := apply(t, svc, event.OrderApproved{OrderID: "order-1"})
	require.Zero(t, res.Transaction.Points)
	require.Equal(t, int64(30), res.Balance.AvailablePoints)
	require.Zero(t, res.Balance.SuspendedPoints)
	require.Equal(t, int64(20), res.Balance.UsedPoints)

	hold := holdOf(t, db, "order-1")
	require.Equal(t, OrderApproved, hold.Status)
	require.Equal(t, int64(20), hold.UsedPoints)
	requireConsistent(t, db)
}

func TestOrderInvalidTransitions(t *testing.T) {
	svc, db := newConfiguredService(t)
	apply(t, svc, event.AdminAdjusted{Points: 50, Notes: "opening balance"})

	t.Run("approve without pending", func(t *testing.T) {
		err := applyErr(svc, event.OrderApproved{OrderID: "unknown"})
		require.ErrorIs(t, err, ErrInvalidOrderTransition)
	})

	t.Run("pending after terminal", func(t *testing.T) {
		apply(t, svc, event.OrderPlaced{OrderID: "order-1", Points: 10})
		apply(t, svc, event.OrderRejected{OrderID: "order-1"})

		err := applyErr(svc, event.OrderPlaced{OrderID: "order-1", Points: 10})
		require.ErrorIs(t, err, ErrInvalidOrderTransition)

		err = applyErr(svc, event.OrderApproved{OrderID: "order-1"})
		require.ErrorIs(t, err, ErrInvalidOrderTransition)
	})

	t.Run("placed twice", func(t *testing.T) {
		apply(t, svc, event.OrderPlaced{OrderID: "order-2", Points: 10})
		res := apply(t, svc, event.OrderPlaced{OrderID: "order-2", Points: 10})
		require.True(t, res.Duplicate)
		require.Equal(t, int64(10), balanceOf(t, db).SuspendedPoints)
	})

	t.Run("insufficient", func(t *testing.T) {
		err := applyErr(svc, event.OrderPlaced{OrderID: "order-3", Points: 500})
		require.ErrorIs(t, err, ErrInsufficientBalance)

		var count int64
		require.NoError(t, db.Model(&PointsOrderHold{}).Where("order_id = ?", "order-3").Count(&count).Error)
		require.Zero(t, count)
	})

	t.Run("non positive", func(t *testing.T) {
		err := applyErr(svc, event.OrderPlaced{OrderID: "order-4", Points: 0})
		require.ErrorIs(t, err, event.ErrInvalidPoints)
	})

	t.Run("other user", func(t *testing.T) {
		_, err := svc.ApplyEvent(context.Background(), ApplyRequest{
			ChurchID: church,
			UserID:   "student-2",
			Event:    event.OrderCancelled{OrderID: "order-2"},
		})
		require.ErrorIs(t, err, ErrInvalidOrderTransition)
	})

	requireConsistent(t, db)
}

func TestIdempotentReplay(t *testing.T) {
	svc, db := newConfiguredService(t)

	first := apply(t, svc, event.AttendanceMarked{AttendanceID: "att-1", Status: event.StatusPresent})
	again := apply(t, svc, event.AttendanceMarked{AttendanceID: "att-1", Status: event.StatusLate})
	require.True(t, again.Duplicate)
	require.Equal(t, first.Transaction.ID, again.Transaction.ID)
	require.Equal(t, int64(5), again.Balance.AvailablePoints)
	require.Len(t, rowsOf(t, db), 1)

	req := ApplyRequest{
		ChurchID:       church,
		UserID:         student,
		IdempotencyKey: "import-42",
		Event:          event.AdminAdjusted{Points: 7, Notes: "import"},
	}
	res, err := svc.ApplyEvent(context.Background(), req)
	require.NoError(t, err)
	require.False(t, res.Duplicate)
	require.Equal(t, "import-42", *res.Transaction.IdempotencyKey)

	res, err = svc.ApplyEvent(context.Background(), req)
	require.NoError(t, err)
	require.True(t, res.Duplicate)
	require.Equal(t, int64(12), balanceOf(t, db).AvailablePoints)

	requireConsistent(t, db)
}

func TestActivityRevocation(t *testing.T) {
	svc, db := newConfiguredService(t)

	apply(t, svc, event.ActivityCompleted{ActivityID: "act-1", Points: 10})
	res := apply(t, svc, event.ActivityRevoked{ActivityID: "act-1"})
	require.Equal(t, int64(-10), res.Transaction.Points)
	require.Zero(t, res.Balance.AvailablePoints)

	var net int64
	for _, row := range rowsOf(t, db) {
		require.Equal(t, "act-1", *row.ActivityID)
		net += row.Points
	}
	require.Zero(t, net)

	res = apply(t, svc, event.ActivityRevoked{ActivityID: "act-1"})
	require.True(t, res.Duplicate)

	res = apply(t, svc, event.ActivityCompleted{ActivityID: "act-1", Points: 10})
	require.True(t, res.Duplicate)

	err := applyErr(svc, event.ActivityRevoked{ActivityID: "act-unknown"})
	require.ErrorIs(t, err, ErrNothingToRevoke)

	requireConsistent(t, db)
}

func TestRevocationDrawsOnPendingOrders(t *testing.T) {
	svc, db := newConfiguredService(t)

	apply(t, svc, event.ActivityCompleted{ActivityID: "act-1", Points: 30})
	apply(t, svc, event.OrderPlaced{OrderID: "order-1", Points: 15})
	apply(t, svc, event.OrderPlaced{OrderID: "order-2", Points: 10})

	res := apply(t, svc, event.ActivityRevoked{ActivityID: "act-1"})
	require.Equal(t, int64(-5), res.Transaction.Points)
	require.Zero(t, res.Transaction.Deficit)
	require.Zero(t, res.Balance.AvailablePoints)
	require.Zero(t, res.Balance.SuspendedPoints)

	meta := metadataOf(t, res.Transaction)
	require.EqualValues(t, 25, meta["from_suspended"])

	first := holdOf(t, db, "order-1")
	require.Zero(t, first.HeldPoints)
	require.Equal(t, int64(15), first.RevokedPoints)

	second := holdOf(t, db, "order-2")
	require.Zero(t, second.HeldPoints)
	require.Equal(t, int64(10), second.RevokedPoints)

	res = apply(t, svc, event.OrderApproved{OrderID: "order-1"})
	require.Zero(t, res.Balance.UsedPoints)

	requireConsistent(t, db)
}

func TestRevocationRecordsDeficit(t *testing.T) {
	svc, db := newConfiguredService(t)

	apply(t, svc, event.ActivityCompleted{ActivityID: "act-1", Points: 10})
	apply(t, svc, event.AdminAdjusted{Points: -8, Notes: "correction"})

	res := apply(t, svc, event.ActivityRevoked{ActivityID: "act-1"})
	require.Equal(t, int64(-2), res.Transaction.Points)
	require.Equal(t, int64(8), res.Transaction.Deficit)
	require.Zero(t, res.Balance.AvailablePoints)
	require.Equal(t, int64(8), res.Balance.DeficitPoints)

	requireConsistent(t, db)
}

func TestFailedApplyLeavesNoTrace(t *testing.T) {
	svc, db := newConfiguredService(t)

	err := applyErr(svc, event.OrderPlaced{OrderID: "order-1", Points: 20})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	var rows, balances, holds int64
	require.NoError(t, db.Model(&PointsTransaction{}).Count(&rows).Error)
	require.NoError(t, db.Model(&StudentPointsBalance{}).Count(&balances).Error)
	require.NoError(t, db.Model(&PointsOrderHold{}).Count(&holds).Error)
	require.Zero(t, rows)
	require.Zero(t, balances)
	require.Zero(t, holds)
}

func TestApplyEventRequestValidation(t *testing.T) {
	svc, _ := newConfiguredService(t)
	ctx := context.Background()

	_, err := svc.ApplyEvent(ctx, ApplyRequest{ChurchID: church, Event: event.TripJoined{TripID: "trip-1"}})
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.ApplyEvent(ctx, ApplyRequest{ChurchID: church, UserID: student})
	require.ErrorIs(t, err, ErrUnsupportedEvent)

	_, err = svc.ApplyEvent(ctx, ApplyRequest{ChurchID: church, UserID: student, Event: event.AttendanceMarked{AttendanceID: "att-1", Status: "sleeping"}})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestApplyEventRuleOutcomes(t *testing.T) {
	db := newLedgerDB(t)
	boom := errors.New("boom")

	svc := newTestService(t, db, ruleFunc(func(ctx context.Context, in pointsconfig.Input) (pointsconfig.Outcome, error) {
		switch in.Event.(type) {
		case event.TripJoined:
			return pointsconfig.Outcome{Reason: "trip points disabled"}, nil
		case event.ActivityCompleted:
			return pointsconfig.Outcome{}, boom
		default:
			return pointsconfig.Outcome{Apply: true}, nil
		}
	}))

	res := apply(t, svc, event.TripJoined{TripID: "trip-1"})
	require.True(t, res.Skipped)
	require.Equal(t, "trip points disabled", res.Reason)

	err := applyErr(svc, event.ActivityCompleted{ActivityID: "act-1", Points: 5})
	require.ErrorIs(t, err, boom)

	res = apply(t, svc, event.AdminAdjusted{Points: 0, Notes: "audit only"})
	require.Zero(t, res.Transaction.Points)
	require.Zero(t, res.Balance.AvailablePoints)

	require.Len(t, rowsOf(t, db), 1)
	requireConsistent(t, db)
}

func TestApplyDeltaConcurrentUpdate(t *testing.T) {
	svc, db := newConfiguredService(t)
	apply(t, svc, event.AdminAdjusted{Points: 10, Notes: "seed"})

	bal := balanceOf(t, db)
	entry := svc.newEntry(DeltaRequest{ApplyRequest: ApplyRequest{
		ChurchID: church,
		UserID:   student,
		Event:    event.AdminAdjusted{Points: 1, Notes: "stale"},
	}, Delta: 1}, "")
	bal.Version = 0

	err := db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, credit(&bal, 1, entry))
		return svc.append(context.Background(), tx, &bal, entry)
	})
	require.Error(t, err)
	require.Equal(t, int64(10), balanceOf(t, db).AvailablePoints)
	require.Len(t, rowsOf(t, db), 1)
}

func TestSharedEntitiesCreditEachStudent(t *testing.T) {
	svc, db := newConfiguredService(t)
	students := []string{"alice", "bob"}

	for _, user := range students {
		res := applyAs(t, svc, user, event.TripJoined{TripID: "trip-1"})
		require.False(t, res.Duplicate, user)
		require.Equal(t, user, res.Transaction.UserID)
		require.Equal(t, int64(20), res.Balance.AvailablePoints)

		res = applyAs(t, svc, user, event.ActivityCompleted{ActivityID: "act-1", Points: 10})
		require.False(t, res.Duplicate, user)
		require.Equal(t, user, res.Transaction.UserID)
		require.Equal(t, int64(30), res.Balance.AvailablePoints)
	}

	for _, user := range students {
		res := applyAs(t, svc, user, event.TripJoined{TripID: "trip-1"})
		require.True(t, res.Duplicate, user)
		require.Equal(t, user, res.Transaction.UserID)
		require.Equal(t, int64(30), res.Balance.AvailablePoints)

		require.Len(t, rowsFor(t, db, user), 2)
		requireConsistentFor(t, db, user)
	}
}

func TestRevocationIsPerStudent(t *testing.T) {
	svc, db := newConfiguredService(t)

	applyAs(t, svc, "alice", event.ActivityCompleted{ActivityID: "act-1", Points: 10})
	applyAs(t, svc, "bob", event.ActivityCompleted{ActivityID: "act-1", Points: 10})

	res := applyAs(t, svc, "bob", event.ActivityRevoked{ActivityID: "act-1"})
	require.False(t, res.Duplicate)
	require.Equal(t, "bob", res.Transaction.UserID)
	require.Equal(t, int64(-10), res.Transaction.Points)
	require.Zero(t, res.Balance.AvailablePoints)

	require.Equal(t, int64(10), balanceFor(t, db, "alice").AvailablePoints)

	res = applyAs(t, svc, "alice", event.ActivityRevoked{ActivityID: "act-1"})
	require.False(t, res.Duplicate)
	require.Equal(t, "alice", res.Transaction.UserID)
	require.Zero(t, res.Balance.AvailablePoints)

	requireConsistentFor(t, db, "alice")
	requireConsistentFor(t, db, "bob")
}

func TestCallerKeyIsScopedToUser(t *testing.T) {
	svc, db := newConfiguredService(t)
	ctx := context.Background()

	for _, user := range []string{"alice", "bob"} {
		res, err := svc.ApplyEvent(ctx, ApplyRequest{
			ChurchID:       church,
			UserID:         user,
			IdempotencyKey: "import-42",
			Event:          event.AdminAdjusted{Points: 7, Notes: "import"},
		})
		require.NoError(t, err)
		require.False(t, res.Duplicate, user)
		require.Equal(t, user, res.Transaction.UserID)
		require.Equal(t, int64(7), res.Balance.AvailablePoints)
	}

	res, err := svc.ApplyEvent(ctx, ApplyRequest{
		ChurchID:       church,
		UserID:         "bob",
		IdempotencyKey: "import-42",
		Event:          event.AdminAdjusted{Points: 7, Notes: "import"},
	})
	require.NoError(t, err)
	require.True(t, res.Duplicate)
	require.Equal(t, "bob", res.Transaction.UserID)

	require.Equal(t, int64(7), balanceFor(t, db, "alice").AvailablePoints)
	require.Equal(t, int64(7), balanceFor(t, db, "bob").AvailablePoints)
}

func TestDuplicateByKeyIsScopedToUser(t *testing.T) {
	svc, _ := newConfiguredService(t)
	applyAs(t, svc, "alice", event.TripJoined{TripID: "trip-1"})

	req := DeltaRequest{ApplyRequest: ApplyRequest{
		ChurchID: church,
		UserID:   "bob",
		Event:    event.TripJoined{TripID: "trip-1"},
	}}
	_, err := svc.duplicateByKey(context.Background(), req, event.IdempotencyKey(req.Event))
	require.ErrorIs(t, err, ErrConcurrentUpdate)

	res := applyAs(t, svc, "alice", event.TripJoined{TripID: "trip-1"})
	req.UserID = "alice"
	dup, err := svc.duplicateByKey(context.Background(), req, event.IdempotencyKey(req.Event))
	require.NoError(t, err)
	require.True(t, dup.Duplicate)
	require.Equal(t, res.Transaction.ID, dup.Transaction.ID)
}

func TestMetadataIsHashed(t *testing.T) {
	svc, db := newConfiguredService(t)

	res := apply(t, svc, event.TeacherAdjusted{Points: 80, Notes: "won the quiz"})
	row := rowsOf(t, db)[0]
	require.Equal(t, res.Transaction.Hash, row.GenerateHash())

	row.Metadata = []byte(`{ "requested_points": 80, "clamped": true }`)
	require.Equal(t, res.Transaction.Hash, row.GenerateHash())

	row.Metadata = []byte(`{"clamped":true,"requested_points":50}`)
	require.NotEqual(t, res.Transaction.Hash, row.GenerateHash())

	row.Metadata = nil
	require.NotEqual(t, res.Transaction.Hash, row.GenerateHash())
}
