package cronwindow

import (
	"fmt"
	"strings"
	"time"

	cron "github.com/netresearch/go-cron"
)

var _parser = cron.MustNewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Window is a recurring maintenance window: the cron spec marks each window's
// start, duration marks its length. Remediation is only allowed inside it.
type Window struct {
	schedule cron.Schedule
	duration time.Duration
}

// New parses the cron spec (with optional IANA timezone) and validates the
// duration. It rejects durations for which consecutive occurrences would
// overlap ambiguously with a zero-length window.
func New(spec, tz string, duration time.Duration) (*Window, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("window duration must be positive, got %s", duration)
	}

	schedule, err := _parser.Parse(buildSpec(spec, tz))
	if err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", spec, err)
	}

	return &Window{
		schedule: schedule,
		duration: duration,
	}, nil
}

// Contains reports whether t falls inside a window: some occurrence starts
// strictly after t-duration and not after t.
func (w *Window) Contains(t time.Time) bool {
	start := w.schedule.Next(t.Add(-w.duration))

	return !start.After(t)
}

func buildSpec(spec, tz string) string {
	hasTZPrefix := strings.HasPrefix(spec, "CRON_TZ=") ||
		strings.HasPrefix(spec, "TZ=")

	if tz != "" && !hasTZPrefix {
		return "CRON_TZ=" + tz + " " + spec
	}

	if !hasTZPrefix {
		return "CRON_TZ=UTC " + spec
	}

	return spec
}
