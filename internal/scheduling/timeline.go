package scheduling

import (
	"time"

	"github.com/wolfman30/glowbook-platform/internal/catalog"
)

// Sequence lays offerings out back to back from start. Each slot lasts the
// offering's duration and the next one starts after the buffer.
func Sequence(start time.Time, offerings []catalog.Offering) []Window {
	slots := make([]Window, 0, len(offerings))
	cursor := start
	for _, o := range offerings {
		end := cursor.Add(time.Duration(o.DurationMinutes) * time.Minute)
		slots = append(slots, Window{Start: cursor, End: end})
		cursor = end.Add(time.Duration(o.BufferMinutes) * time.Minute)
	}
	return slots
}
