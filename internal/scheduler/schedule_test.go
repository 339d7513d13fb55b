package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule_Calendar(t *testing.T) {
	sched, err := ParseSchedule("*-*-1 00:00:00")
	require.NoError(t, err)

	next, ok := sched.Next(time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), next)
}

func TestParseSchedule_CalendarWithZone(t *testing.T) {
	sched, err := ParseSchedule("daily Europe/Riga")
	require.NoError(t, err)

	next, ok := sched.Next(time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, "Europe/Riga", next.Location().String())
}

func TestParseSchedule_CronPrefix(t *testing.T) {
	sched, err := ParseSchedule("cron:*/15 * * * *")
	require.NoError(t, err)

	from := time.Date(2026, 8, 15, 12, 3, 0, 0, time.UTC)
	next, ok := sched.Next(from)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 15, 12, 15, 0, 0, time.UTC), next)
}

func TestParseSchedule_CronDescriptor(t *testing.T) {
	sched, err := ParseSchedule("cron:@hourly")
	require.NoError(t, err)

	from := time.Date(2026, 8, 15, 12, 30, 0, 0, time.UTC)
	next, ok := sched.Next(from)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 15, 13, 0, 0, 0, time.UTC), next)
}

func TestParseSchedule_Invalid(t *testing.T) {
	tests := []string{
		"",
		"*:61",
		"cron:not a cron line",
		"cron:* * *",
	}
	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			err := ValidateExpression(expr)
			assert.Error(t, err)
		})
	}
}
