package pointsconfig

import (
	"strings"

	"sundayschool-points/pkg/celengine"
	"sundayschool-points/pkg/errutil"

	"github.com/google/cel-go/cel"
)

// Conditions evaluates the optional per-church award_condition. Expressions
// see event_type, status, church_id, user_id and points.
type Conditions struct {
	engine *celengine.Engine
}

func NewConditions() (*Conditions, error) {
	engine, err := celengine.New(map[string]*cel.Type{
		"event_type": cel.StringType,
		"status":     cel.StringType,
		"church_id":  cel.StringType,
		"user_id":    cel.StringType,
		"points":     cel.IntType,
	})
	if err != nil {
		return nil, err
	}
	return &Conditions{engine: engine}, nil
}

func (c *Conditions) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	if err := c.engine.Validate(expr); err != nil {
		return ErrInvalidCondition.(errutil.BaseError).With(
			errutil.WithDetails(errutil.Detail{Field: "award_condition", Message: err.Error()}),
		)
	}
	return nil
}

type ConditionInput struct {
	EventType string
	Status    string
	ChurchID  string
	UserID    string
	Points    int64
}

// Allow reports whether expr admits the award. An empty expression allows
// everything.
func (c *Conditions) Allow(expr string, in ConditionInput) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}
	return c.engine.Evaluate(expr, map[string]any{
		"event_type": in.EventType,
		"status":     in.Status,
		"church_id":  in.ChurchID,
		"user_id":    in.UserID,
		"points":     in.Points,
	})
}
