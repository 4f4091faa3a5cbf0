package usage

import (
	"fmt"
	"time"
)

// Window is the time span a usage report covers.
type Window struct {
	Start time.Time
	End   time.Time
}

// Shorthand day counts accepted by the days query parameter.
var shorthandDays = map[int]bool{7: true, 30: true, 90: true}

// WindowFromDays builds a shorthand window of 7, 30 or 90 days ending now.
func WindowFromDays(days int, now time.Time) (Window, error) {
	if !shorthandDays[days] {
		return Window{}, fmt.Errorf("unsupported shorthand window %d: must be one of 7, 30, 90", days)
	}
	return Window{
		Start: now.AddDate(0, 0, -days),
		End:   now,
	}, nil
}

// NewWindow builds an explicit window. Any range with start <= end is valid;
// the shorthand values are a convenience, not a restriction.
func NewWindow(start, end time.Time) (Window, error) {
	if start.After(end) {
		return Window{}, fmt.Errorf("invalid window: start %s is after end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Window{Start: start, End: end}, nil
}
