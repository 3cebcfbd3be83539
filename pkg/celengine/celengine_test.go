package celengine

import (
	"testing"

	"github.com/google/cel-go/cel"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(map[string]*cel.Type{
		"status": cel.StringType,
		"points": cel.IntType,
	})
	require.NoError(t, err)
	return e
}

func TestEvaluate(t *testing.T) {
	e := newEngine(t)

	ok, err := e.Evaluate(`status == "present" && points > 0`, map[string]any{"status": "present", "points": int64(10)})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.Evaluate(`status == "present" && points > 0`, map[string]any{"status": "late", "points": int64(10)})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestValidate(t *testing.T) {
	e := newEngine(t)

	require.NoError(t, e.Validate(`status != "absent"`))
	require.Error(t, e.Validate(`points + 1`))
	require.Error(t, e.Validate(`unknown_var == 1`))
	require.Error(t, e.Validate(`status ==`))
}
