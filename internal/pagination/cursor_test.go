package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_RecoversPosition(t *testing.T) {
	ts := time.Date(2026, 2, 15, 10, 30, 0, 0, time.UTC)

	cursor, err := Decode(Encode(ts, "act-1"))
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, ts, cursor.CreatedAt)
	assert.Equal(t, "act-1", cursor.ID)
}

func TestDecode_Empty(t *testing.T) {
	cursor, err := Decode("")
	assert.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecode_Invalid(t *testing.T) {
	for _, in := range []string{"not-base64!!!", "bm9waXBl", "YWJjfHg", "MTIzfA"} {
		_, err := Decode(in)
		assert.ErrorIs(t, err, ErrInvalidCursor, in)
	}
}

func TestCursor_After(t *testing.T) {
	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := &Cursor{CreatedAt: ts, ID: "m"}

	assert.True(t, c.After(ts.Add(-time.Second), "z"), "older rows come next")
	assert.False(t, c.After(ts.Add(time.Second), "a"), "newer rows were already served")
	assert.True(t, c.After(ts, "a"), "ties break on id")
	assert.False(t, c.After(ts, "m"), "the cursor row itself is excluded")

	var none *Cursor
	assert.True(t, none.After(ts, "x"))
}

func TestParseLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ParseLimit(""))
	assert.Equal(t, DefaultLimit, ParseLimit("abc"))
	assert.Equal(t, DefaultLimit, ParseLimit("-4"))
	assert.Equal(t, 10, ParseLimit("10"))
	assert.Equal(t, MaxLimit, ParseLimit("100000"))
}

func TestComputePage(t *testing.T) {
	key := func(s string) (time.Time, string) {
		return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), s
	}

	result, cursor, hasMore := ComputePage([]string{"a", "b", "c"}, 5, key)
	assert.Len(t, result, 3)
	assert.Empty(t, cursor)
	assert.False(t, hasMore)

	result, cursor, hasMore = ComputePage([]string{"d", "c", "b", "a"}, 3, key)
	assert.Equal(t, []string{"d", "c", "b"}, result)
	assert.True(t, hasMore)
	decoded, err := Decode(cursor)
	require.NoError(t, err)
	assert.Equal(t, "b", decoded.ID)
}
