package persistence

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 589793238, time.UTC)

	cursor := EncodeCursor(ts, "entry-42")

	gotTS, gotID, err := DecodeCursor(cursor)
	require.NoError(t, err)
	assert.True(t, ts.Equal(gotTS))
	assert.Equal(t, "entry-42", gotID)
}

func TestCursorRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ts := time.Unix(
			rapid.Int64Range(0, 1<<35).Draw(t, "sec"),
			rapid.Int64Range(0, 999999999).Draw(t, "nsec"),
		).UTC()
		id := rapid.StringMatching(`[a-z0-9-]{1,40}`).Draw(t, "id")

		gotTS, gotID, err := DecodeCursor(EncodeCursor(ts, id))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}

		if !ts.Equal(gotTS) || id != gotID {
			t.Fatalf("round trip changed (%v, %q) to (%v, %q)", ts, id, gotTS, gotID)
		}
	})
}

func TestDecodeCursorRejectsMalformedInput(t *testing.T) {
	cases := []struct {
		name   string
		cursor string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"no separator", base64.RawURLEncoding.EncodeToString([]byte("2025-01-01T00:00:00Z"))},
		{"empty id", base64.RawURLEncoding.EncodeToString([]byte("2025-01-01T00:00:00Z|"))},
		{"bad timestamp", base64.RawURLEncoding.EncodeToString([]byte("yesterday|entry-1"))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeCursor(tc.cursor)
			assert.ErrorIs(t, err, ErrInvalidCursor)
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	err := NewBookError("UpdateState", "book-1", ErrVersionConflict)

	assert.True(t, IsVersionConflict(err))
	assert.False(t, IsBookNotFound(err))
	assert.Contains(t, err.Error(), "UpdateState")
	assert.Contains(t, err.Error(), "book-1")
}
