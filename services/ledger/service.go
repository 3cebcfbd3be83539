package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"sundayschool-points/pkg/db/option"
	"sundayschool-points/pkg/errutil"
	"sundayschool-points/pkg/repository"
	"sundayschool-points/services/ledger/event"
	"sundayschool-points/services/pointsconfig"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Evaluator turns an event into a point delta.
type Evaluator interface {
	Evaluate(ctx context.Context, in pointsconfig.Input) (pointsconfig.Outcome, error)
}

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	rules  Evaluator
	tracer trace.Tracer

	transactions repository.Repository[PointsTransaction]
	balances     repository.Repository[StudentPointsBalance]
	holds        repository.Repository[PointsOrderHold]

	now func() time.Time
}

type ServiceParams struct {
	fx.In
	DB             *gorm.DB
	Node           *snowflake.Node
	Rules          Evaluator
	TracerProvider trace.TracerProvider `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	tp := p.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &Service{
		db:     p.DB,
		node:   p.Node,
		rules:  p.Rules,
		tracer: tp.Tracer("sundayschool-points/services/ledger"),

		transactions: repository.ProvideStore[PointsTransaction](p.DB),
		balances:     repository.ProvideStore[StudentPointsBalance](p.DB),
		holds:        repository.ProvideStore[PointsOrderHold](p.DB),

		now: time.Now,
	}
}

type ApplyRequest struct {
	ChurchID string
	UserID   string
	// ActorID is empty for system-originated events.
	ActorID string
	// IdempotencyKey overrides the key derived from the event. Keys are
	// scoped to UserID. Store order events always use their derived key.
	IdempotencyKey string
	Notes          string
	Event          event.Event
}

func (r ApplyRequest) validate() error {
	if strings.TrimSpace(r.ChurchID) == "" || strings.TrimSpace(r.UserID) == "" {
		return ErrInvalidRequest
	}
	if r.Event == nil {
		return event.ErrUnsupportedEvent
	}
	return r.Event.Validate()
}

func (r ApplyRequest) key() string {
	if r.IdempotencyKey != "" && !event.IsOrderEvent(r.Event) {
		return r.IdempotencyKey
	}
	return event.IdempotencyKey(r.Event)
}

// DeltaRequest applies an already evaluated delta. Delta is ignored for
// revocations and store orders, whose amounts come from the ledger itself.
type DeltaRequest struct {
	ApplyRequest
	Delta    int64
	Metadata map[string]any
}

type Result struct {
	Transaction *PointsTransaction    `json:"transaction,omitempty"`
	Balance     *StudentPointsBalance `json:"balance,omitempty"`
	Duplicate   bool                  `json:"duplicate"`
	Skipped     bool                  `json:"skipped"`
	Clamped     bool                  `json:"clamped,omitempty"`
	Reason      string                `json:"reason,omitempty"`
}

// ApplyEvent runs the event through the rule engine and records the outcome.
func (s *Service) ApplyEvent(ctx context.Context, req ApplyRequest) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.ApplyEvent")
	defer span.End()

	if err := req.validate(); err != nil {
		s.reject(ctx, span, req, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("church_id", req.ChurchID),
		attribute.String("user_id", req.UserID),
		attribute.String("type", req.Event.Type().String()),
	)

	outcome, err := s.rules.Evaluate(ctx, pointsconfig.Input{
		ChurchID: req.ChurchID,
		UserID:   req.UserID,
		Event:    req.Event,
	})
	if err != nil {
		s.reject(ctx, span, req, err)
		return nil, err
	}

	if !outcome.Apply {
		eventsTotal.WithLabelValues(req.Event.Type().String(), outcomeSkipped).Inc()
		zap.L().With(logFields(ctx, req)...).Info("points event skipped", zap.String("reason", outcome.Reason))
		return &Result{Skipped: true, Reason: outcome.Reason}, nil
	}

	var meta map[string]any
	if outcome.Clamped {
		if ev, ok := req.Event.(event.TeacherAdjusted); ok {
			meta = map[string]any{"requested_points": ev.Points, "clamped": true}
		}
	}

	res, err := s.ApplyDelta(ctx, DeltaRequest{ApplyRequest: req, Delta: outcome.Delta, Metadata: meta})
	if err != nil {
		return nil, err
	}
	res.Clamped = outcome.Clamped
	return res, nil
}

// ApplyDelta writes the transaction row and the balance in one database
// transaction. A repeated idempotency key returns the original row.
func (s *Service) ApplyDelta(ctx context.Context, req DeltaRequest) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.ApplyDelta")
	defer span.End()

	if err := req.validate(); err != nil {
		s.reject(ctx, span, req.ApplyRequest, err)
		return nil, err
	}

	typ := req.Event.Type().String()
	key := req.key()
	start := time.Now()

	var result *Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bal, err := s.lockBalance(ctx, tx, req.ChurchID, req.UserID)
		if err != nil {
			return err
		}

		if event.IsOrderEvent(req.Event) {
			result, err = s.applyOrder(ctx, tx, bal, req)
			return err
		}

		if key != "" {
			prior, err := s.transactions.WithTrx(tx).FindOne(ctx, &PointsTransaction{UserID: req.UserID, IdempotencyKey: &key})
			if err != nil {
				return err
			}
			if prior != nil {
				result = &Result{Transaction: prior, Balance: bal, Duplicate: true}
				return nil
			}
		}

		entry := s.newEntry(req, key)
		switch ev := req.Event.(type) {
		case event.ActivityRevoked:
			err = s.revoke(ctx, tx, bal, ev, entry)
		default:
			err = credit(bal, req.Delta, entry)
		}
		if err != nil {
			return err
		}

		if err := s.append(ctx, tx, bal, entry); err != nil {
			return err
		}
		result = &Result{Transaction: entry, Balance: bal}
		return nil
	})
	applySeconds.WithLabelValues(typ).Observe(time.Since(start).Seconds())

	if err != nil {
		if key != "" && errors.Is(err, gorm.ErrDuplicatedKey) {
			// a concurrent writer committed the same key first
			return s.duplicateByKey(ctx, req, key)
		}
		err = asError(err)
		s.reject(ctx, span, req.ApplyRequest, err)
		return nil, err
	}

	outcome := outcomeApplied
	if result.Duplicate {
		outcome = outcomeDuplicate
	}
	eventsTotal.WithLabelValues(typ, outcome).Inc()

	zap.L().With(logFields(ctx, req.ApplyRequest)...).Info("points event recorded",
		zap.String("outcome", outcome),
		zap.String("transaction_id", result.Transaction.ID),
		zap.Int64("points", result.Transaction.Points),
		zap.Int64("available_points", result.Balance.AvailablePoints),
	)
	return result, nil
}

func (s *Service) duplicateByKey(ctx context.Context, req DeltaRequest, key string) (*Result, error) {
	prior, err := s.transactions.FindOne(ctx, &PointsTransaction{UserID: req.UserID, IdempotencyKey: &key})
	if err != nil {
		return nil, errutil.Internal("failed to load transaction for idempotency key", err)
	}
	if prior == nil {
		return nil, ErrConcurrentUpdate
	}
	bal, err := s.balances.FindOne(ctx, &StudentPointsBalance{UserID: req.UserID})
	if err != nil {
		return nil, errutil.Internal("failed to load balance", err)
	}

	eventsTotal.WithLabelValues(req.Event.Type().String(), outcomeDuplicate).Inc()
	return &Result{Transaction: prior, Balance: bal, Duplicate: true}, nil
}

// lockBalance creates the balance row if absent and locks it for the rest of
// the transaction.
func (s *Service) lockBalance(ctx context.Context, tx *gorm.DB, churchID, userID string) (*StudentPointsBalance, error) {
	balances := s.balances.WithTrx(tx)

	bal, err := balances.FindOne(ctx, &StudentPointsBalance{UserID: userID}, option.WithLockingUpdate())
	if err != nil || bal != nil {
		return bal, err
	}

	now := s.clock()
	seed := &StudentPointsBalance{
		ID:        s.node.Generate().String(),
		UserID:    userID,
		ChurchID:  churchID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(seed).Error
	if err != nil {
		return nil, err
	}

	bal, err = balances.FindOne(ctx, &StudentPointsBalance{UserID: userID}, option.WithLockingUpdate())
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return nil, errutil.Internal("balance row missing after insert", nil)
	}
	return bal, nil
}

func (s *Service) newEntry(req DeltaRequest, key string) *PointsTransaction {
	entry := &PointsTransaction{
		ChurchID: req.ChurchID,
		UserID:   req.UserID,
		Type:     req.Event.Type(),
	}
	if key != "" {
		entry.IdempotencyKey = &key
	}
	if req.ActorID != "" {
		actor := req.ActorID
		entry.CreatedBy = &actor
	}

	notes := strings.TrimSpace(req.Notes)
	meta := map[string]any{}
	for k, v := range req.Metadata {
		meta[k] = v
	}

	switch ev := req.Event.(type) {
	case event.AttendanceMarked:
		entry.AttendanceID = strPtr(ev.AttendanceID)
		meta["status"] = string(ev.Status)
	case event.TripJoined:
		entry.TripID = strPtr(ev.TripID)
	case event.ActivityCompleted:
		entry.ActivityID = strPtr(ev.ActivityID)
	case event.ActivityRevoked:
		entry.ActivityID = strPtr(ev.ActivityID)
	case event.TeacherAdjusted:
		notes = strings.TrimSpace(ev.Notes)
	case event.AdminAdjusted:
		notes = strings.TrimSpace(ev.Notes)
	case event.OrderPlaced:
		entry.OrderID = strPtr(ev.OrderID)
	case event.OrderApproved:
		entry.OrderID = strPtr(ev.OrderID)
	case event.OrderCancelled:
		entry.OrderID = strPtr(ev.OrderID)
	case event.OrderRejected:
		entry.OrderID = strPtr(ev.OrderID)
	}

	if notes != "" {
		entry.Notes = &notes
	}
	setMetadata(entry, meta)
	return entry
}

// credit applies a plain signed delta.
func credit(bal *StudentPointsBalance, delta int64, entry *PointsTransaction) error {
	next := bal.AvailablePoints + delta
	if next < 0 {
		return insufficient(bal.AvailablePoints, -delta)
	}

	bal.AvailablePoints = next
	if delta > 0 {
		bal.TotalEarned += delta
	} else {
		bal.TotalDeducted += -delta
	}
	entry.Points = delta
	return nil
}

// append chains entry onto the user's log and persists the balance. The
// version check guards against writers that bypassed the row lock.
func (s *Service) append(ctx context.Context, tx *gorm.DB, bal *StudentPointsBalance, entry *PointsTransaction) error {
	now := s.clock()

	entry.ID = s.node.Generate().String()
	entry.Sequence = bal.Version + 1
	entry.BalanceAfter = bal.AvailablePoints
	entry.PreviousHash = bal.LastHash
	if entry.PreviousHash == "" {
		entry.PreviousHash = GenesisHash
	}
	entry.CreatedAt = now
	entry.Hash = entry.GenerateHash()

	if err := s.transactions.WithTrx(tx).Create(ctx, entry); err != nil {
		return err
	}

	res := tx.WithContext(ctx).
		Model(&StudentPointsBalance{}).
		Where("id = ? AND version = ?", bal.ID, bal.Version).
		Updates(map[string]any{
			"church_id":        entry.ChurchID,
			"available_points": bal.AvailablePoints,
			"suspended_points": bal.SuspendedPoints,
			"used_points":      bal.UsedPoints,
			"total_earned":     bal.TotalEarned,
			"total_deducted":   bal.TotalDeducted,
			"deficit_points":   bal.DeficitPoints,
			"version":          bal.Version + 1,
			"last_hash":        entry.Hash,
			"updated_at":       now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}

	bal.ChurchID = entry.ChurchID
	bal.Version++
	bal.LastHash = entry.Hash
	bal.UpdatedAt = now
	return nil
}

// clock truncates to milliseconds so the hashed timestamp survives a round
// trip through every supported database.
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Service) reject(ctx context.Context, span trace.Span, req ApplyRequest, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	typ := "unknown"
	if req.Event != nil {
		typ = req.Event.Type().String()
	}
	eventsTotal.WithLabelValues(typ, outcomeRejected).Inc()

	zap.L().With(logFields(ctx, req)...).Warn("points event rejected", zap.Error(err))
}

func logFields(ctx context.Context, req ApplyRequest) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	fields := []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
		zap.String("church_id", req.ChurchID),
		zap.String("user_id", req.UserID),
	}
	if req.Event != nil {
		fields = append(fields,
			zap.String("type", req.Event.Type().String()),
			zap.String("reference", req.Event.Reference()),
		)
	}
	return fields
}

func asError(err error) error {
	var be errutil.BaseError
	if errors.As(err, &be) {
		return err
	}
	return errutil.Internal("failed to record points transaction", err)
}

func setMetadata(entry *PointsTransaction, meta map[string]any) {
	if len(meta) == 0 {
		entry.Metadata = nil
		return
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return
	}
	entry.Metadata = datatypes.JSON(b)
}

func mergeMetadata(entry *PointsTransaction, extra map[string]any) {
	meta := map[string]any{}
	if len(entry.Metadata) > 0 {
		_ = json.Unmarshal(entry.Metadata, &meta)
	}
	for k, v := range extra {
		meta[k] = v
	}
	setMetadata(entry, meta)
}

func strPtr(s string) *string {
	return &s
}
