package scheduler

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"calsched/internal/oncalendar"
)

// Schedule yields the occurrence times of a job. The boolean is false
// once no further occurrence exists (an exhausted OnCalendar
// expression); classic cron schedules never exhaust.
type Schedule interface {
	Next(after time.Time) (time.Time, bool)
}

// cronPrefix selects the classic 5-field cron grammar instead of the
// default OnCalendar one, e.g. "cron:*/5 * * * *" or "cron:@hourly".
const cronPrefix = "cron:"

// Standard 5-field cron with @descriptors for the compatibility path.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule compiles a schedule expression. OnCalendar expressions
// (with an optional trailing timezone) are the native grammar; the
// "cron:" prefix switches to classic cron.
func ParseSchedule(expr string) (Schedule, error) {
	if rest, ok := strings.CutPrefix(expr, cronPrefix); ok {
		sched, err := cronParser.Parse(strings.TrimSpace(rest))
		if err != nil {
			return nil, err
		}
		return cronSchedule{inner: sched}, nil
	}
	return oncalendar.ParseTZ(expr)
}

// IsCron reports whether an expression uses the classic cron grammar.
// Cron schedules only run forward.
func IsCron(expr string) bool {
	return strings.HasPrefix(expr, cronPrefix)
}

// ValidateExpression checks an expression without keeping the compiled
// schedule. Used by the API before accepting a job.
func ValidateExpression(expr string) error {
	_, err := ParseSchedule(expr)
	return err
}

// cronSchedule adapts robfig/cron's Schedule, which signals "no next
// activation" with a zero time rather than a second return value.
type cronSchedule struct {
	inner cron.Schedule
}

func (s cronSchedule) Next(after time.Time) (time.Time, bool) {
	next := s.inner.Next(after)
	return next, !next.IsZero()
}
