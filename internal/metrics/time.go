package metrics

import (
	"fmt"
	"time"
)

// zeroEngineTime is what the engine reports for a timestamp that was never set.
const zeroEngineTime = "0001-01-01T00:00:00Z"

// ParseEngineTime parses a state timestamp such as State.StartedAt.
func ParseEngineTime(s string) (time.Time, bool) {
	if s == "" || s == zeroEngineTime {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

// FormatUptime formats whole seconds as "Xd Yh Zm Ws".
func FormatUptime(seconds int64) string {
	if seconds < 0 {
		return "N/A"
	}
	days := seconds / 86400
	seconds %= 86400
	hours := seconds / 3600
	seconds %= 3600
	minutes := seconds / 60
	seconds %= 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}
