package persistence

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Ledger page cursors are opaque to callers: base64 of the last entry's
// timestamp and id. Keyset pagination keeps pages stable while new entries
// are appended.

// EncodeCursor builds the opaque cursor for the entry after (ts, id).
func EncodeCursor(ts time.Time, id string) string {
	raw := ts.UTC().Format(time.RFC3339Nano) + "|" + id

	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses an opaque cursor, returning ErrInvalidCursor on any
// malformed input.
func DecodeCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %s", ErrInvalidCursor, cursor)
	}

	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return time.Time{}, "", fmt.Errorf("%w: %s", ErrInvalidCursor, cursor)
	}

	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %s", ErrInvalidCursor, cursor)
	}

	return ts, parts[1], nil
}
