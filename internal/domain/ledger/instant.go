package ledger

import (
	"fmt"
	"time"
)

// instantLayout is fixed width, so keys sort the same as the instants they encode
// for every year a source timestamp can carry (0000-9999).
const instantLayout = "2006-01-02T15:04:05.000000000Z"

// InstantKey encodes t in UTC with full nanosecond precision.
// Stores whose native time type is coarser persist this key next to it.
func InstantKey(t time.Time) string {
	return t.UTC().Format(instantLayout)
}

// ParseInstantKey reverses InstantKey
func ParseInstantKey(key string) (time.Time, error) {
	t, err := time.Parse(instantLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid instant key %q: %w", key, err)
	}
	return t.UTC(), nil
}
