package pointsconfig

import (
	"context"

	"sundayschool-points/pkg/config"
	"sundayschool-points/pkg/errutil"
	"sundayschool-points/pkg/featureflags"
	"sundayschool-points/services/ledger/event"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Input struct {
	ChurchID string
	UserID   string
	Event    event.Event
}

// Outcome is the rule engine's verdict. When Apply is false the event is a
// no-op and Reason says why.
type Outcome struct {
	Delta   int64
	Apply   bool
	Clamped bool
	Reason  string
}

func skip(reason string) (Outcome, error) {
	return Outcome{Reason: reason}, nil
}

func apply(delta int64) (Outcome, error) {
	return Outcome{Delta: delta, Apply: true}, nil
}

// Engine maps domain events to point deltas using the church configuration.
type Engine struct {
	repo       Repository
	cache      Cache
	flags      featureflags.FeatureFlag
	conditions *Conditions
	killSwitch string
	group      singleflight.Group
}

type EngineParams struct {
	fx.In
	Config     *config.Config
	Repo       Repository
	Cache      Cache
	Conditions *Conditions
	Flags      featureflags.FeatureFlag `optional:"true"`
}

func NewEngine(p EngineParams) *Engine {
	return &Engine{
		repo:       p.Repo,
		cache:      p.Cache,
		flags:      p.Flags,
		conditions: p.Conditions,
		killSwitch: p.Config.Points.KillSwitchFeature,
	}
}

// Config loads a church configuration through the cache. Concurrent misses
// for one church share a single database read.
func (e *Engine) Config(ctx context.Context, churchID string) (*ChurchPointsConfig, error) {
	if churchID == "" {
		return nil, ErrConfigNotFound
	}

	if cfg, ok := e.cache.Get(ctx, churchID); ok {
		return cfg, nil
	}

	v, err, _ := e.group.Do(churchID, func() (any, error) {
		cfg, err := e.repo.Get(ctx, churchID)
		if err != nil {
			return nil, errutil.Internal("failed to load points configuration", err)
		}
		if cfg == nil {
			return nil, ErrConfigNotFound
		}
		e.cache.Set(ctx, cfg)
		return cfg, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ChurchPointsConfig), nil
}

// Evaluate returns the delta for an event. Every award or adjustment needs
// the church configuration, so an unknown church fails with
// ErrConfigNotFound. Revocations and store orders take their amounts from the
// ledger and are evaluated without it.
func (e *Engine) Evaluate(ctx context.Context, in Input) (Outcome, error) {
	if in.Event == nil {
		return Outcome{}, event.ErrUnsupportedEvent
	}
	if err := in.Event.Validate(); err != nil {
		return Outcome{}, err
	}

	switch ev := in.Event.(type) {
	case event.AttendanceMarked:
		cfg, err := e.Config(ctx, in.ChurchID)
		if err != nil {
			return Outcome{}, err
		}
		if !cfg.IsAttendancePointsEnabled {
			return skip("attendance points disabled")
		}
		delta, ok := cfg.AttendancePoints(ev.Status)
		if !ok {
			return Outcome{}, event.ErrInvalidStatus
		}
		if delta == 0 {
			return skip("no points for status " + string(ev.Status))
		}
		return e.award(ctx, cfg, in, delta, string(ev.Status))

	case event.TripJoined:
		cfg, err := e.Config(ctx, in.ChurchID)
		if err != nil {
			return Outcome{}, err
		}
		if !cfg.IsTripPointsEnabled {
			return skip("trip points disabled")
		}
		if cfg.TripParticipationPoints == 0 {
			return skip("no points for trips")
		}
		return e.award(ctx, cfg, in, cfg.TripParticipationPoints, "")

	case event.ActivityCompleted:
		if _, err := e.Config(ctx, in.ChurchID); err != nil {
			return Outcome{}, err
		}
		if !e.enabled(ctx, in.ChurchID) {
			return skip("points ledger disabled")
		}
		return apply(ev.Points)

	case event.TeacherAdjusted:
		cfg, err := e.Config(ctx, in.ChurchID)
		if err != nil {
			return Outcome{}, err
		}
		if !cfg.IsTeacherAdjustmentEnabled {
			return Outcome{}, ErrFeatureDisabled
		}
		delta := cfg.ClampAdjustment(ev.Points)
		return Outcome{Delta: delta, Apply: true, Clamped: delta != ev.Points}, nil

	case event.AdminAdjusted:
		if _, err := e.Config(ctx, in.ChurchID); err != nil {
			return Outcome{}, err
		}
		return apply(ev.Points)

	case event.ActivityRevoked, event.OrderPlaced, event.OrderApproved, event.OrderCancelled, event.OrderRejected:
		// amounts come from the ledger's own records
		return apply(0)

	default:
		return Outcome{}, event.ErrUnsupportedEvent
	}
}

func (e *Engine) award(ctx context.Context, cfg *ChurchPointsConfig, in Input, delta int64, status string) (Outcome, error) {
	if !e.enabled(ctx, in.ChurchID) {
		return skip("points ledger disabled")
	}

	ok, err := e.conditions.Allow(cfg.AwardCondition, ConditionInput{
		EventType: in.Event.Type().String(),
		Status:    status,
		ChurchID:  in.ChurchID,
		UserID:    in.UserID,
		Points:    delta,
	})
	if err != nil {
		return Outcome{}, errutil.Internal("failed to evaluate award condition", err)
	}
	if !ok {
		return skip("award condition not met")
	}

	return apply(delta)
}

// enabled consults the operator kill switch. Flag lookups fail open.
func (e *Engine) enabled(ctx context.Context, churchID string) bool {
	if e.flags == nil || e.killSwitch == "" {
		return true
	}

	on, err := e.flags.IsEnabled(ctx, churchID, e.killSwitch)
	if err != nil {
		span := trace.SpanFromContext(ctx).SpanContext()
		zap.L().Warn("feature flag lookup failed",
			zap.String("trace_id", span.TraceID().String()),
			zap.String("church_id", churchID),
			zap.String("feature", e.killSwitch),
			zap.Error(err),
		)
		return true
	}
	return on
}
