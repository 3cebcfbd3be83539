package pagination

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	s, err := EncodeCursor(Cursor{ID: "42", Sequence: 7})
	require.NoError(t, err)

	c, err := DecodeCursor(s)
	require.NoError(t, err)
	require.Equal(t, "42", c.ID)
	require.Equal(t, int64(7), c.Sequence)

	_, err = DecodeCursor("%%%")
	require.Error(t, err)
}

func TestBuildCursorPageInfo(t *testing.T) {
	type row struct{ id string }
	rows := []*row{{"a"}, {"b"}, {"c"}}

	page, info := BuildCursorPageInfo(rows, 2, func(r *row) string { return r.id })
	require.Len(t, page, 2)
	require.True(t, info.HasMore)
	require.Equal(t, "b", info.NextCursor)

	page, info = BuildCursorPageInfo(rows, 5, func(r *row) string { return r.id })
	require.Len(t, page, 3)
	require.False(t, info.HasMore)
	require.Empty(t, info.NextCursor)
}
