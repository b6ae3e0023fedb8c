package ledger

import (
	"fmt"
	"strings"
	"time"
)

// HumanizeWait renders a wait duration using its two largest nonzero units out
// of days/hours/minutes, e.g. "1 day 9 hours" or "3 hours 5 minutes".
// Durations under a minute render as "0 minutes".
func HumanizeWait(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int(d / time.Minute)

	type unit struct {
		n    int
		name string
	}

	var parts []string
	for _, u := range []unit{{days, "day"}, {hours, "hour"}, {minutes, "minute"}} {
		if u.n == 0 {
			continue
		}
		parts = append(parts, pluralize(u.n, u.name))
		if len(parts) == 2 {
			break
		}
	}

	if len(parts) == 0 {
		return "0 minutes"
	}
	return strings.Join(parts, " ")
}

func pluralize(n int, name string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", name)
	}
	return fmt.Sprintf("%d %ss", n, name)
}
