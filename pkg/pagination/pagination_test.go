package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	require.Equal(t, DefaultLimit, NormalizeLimit(0))
	require.Equal(t, DefaultLimit, NormalizeLimit(-3))
	require.Equal(t, 10, NormalizeLimit(10))
	require.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
	require.Equal(t, 11, LimitWithBuffer(10))
}

func TestCursorRoundTrip(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 123, time.UTC), ID: uuid.New()}
	decoded, err := ParseCursor(EncodeCursor(cursor))
	require.NoError(t, err)
	require.True(t, cursor.CreatedAt.Equal(decoded.CreatedAt))
	require.Equal(t, cursor.ID, decoded.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	empty, err := ParseCursor("  ")
	require.NoError(t, err)
	require.Nil(t, empty)

	for _, value := range []string{"!!!", EncodeRaw("no-separator"), EncodeRaw("yesterday|" + uuid.NewString()), EncodeRaw(time.Now().Format(time.RFC3339Nano) + "|nope")} {
		_, err := ParseCursor(value)
		require.Error(t, err, value)
	}
}

func TestPageFrom(t *testing.T) {
	type row struct {
		id uuid.UUID
		at time.Time
	}
	now := time.Now().UTC()
	rows := []row{{uuid.New(), now}, {uuid.New(), now.Add(-time.Minute)}, {uuid.New(), now.Add(-2 * time.Minute)}}

	page := PageFrom(rows, 2, func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} })
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)

	next, err := ParseCursor(page.NextCursor)
	require.NoError(t, err)
	require.Equal(t, rows[1].id, next.ID)

	last := PageFrom(rows[:1], 2, func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} })
	require.Len(t, last.Items, 1)
	require.Empty(t, last.NextCursor)
}
