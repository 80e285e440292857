package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvery_CalculatesNextRun(t *testing.T) {
	sc := Every(time.Hour)
	now := time.Date(2026, 2, 8, 10, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 2, 8, 11, 30, 0, 0, time.UTC), sc.Next(now))
}

func TestDaily_CalculatesNextRun(t *testing.T) {
	sc := Daily(9, 0)

	// Before 9am fires today.
	now := time.Date(2026, 2, 8, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 8, 9, 0, 0, 0, time.UTC), sc.Next(now))

	// After 9am fires tomorrow.
	now = time.Date(2026, 2, 8, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC), sc.Next(now))

	// Exactly 9am fires tomorrow.
	now = time.Date(2026, 2, 8, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC), sc.Next(now))
}

func TestWeekly_CalculatesNextRun(t *testing.T) {
	sc := Weekly(time.Monday, 9, 0)

	// Feb 8 2026 is a Sunday; next Monday is Feb 9.
	now := time.Date(2026, 2, 8, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC), sc.Next(now))

	// Monday after the firing time rolls a full week.
	now = time.Date(2026, 2, 9, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 16, 9, 0, 0, 0, time.UTC), sc.Next(now))
}

func TestCron_CalculatesNextRun(t *testing.T) {
	sc, err := Cron("0 2 * * *") // 2am daily
	require.NoError(t, err)

	now := time.Date(2026, 2, 8, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 9, 2, 0, 0, 0, time.UTC), sc.Next(now))
}

func TestCron_InvalidExpression(t *testing.T) {
	_, err := Cron("not a cron expr")
	assert.Error(t, err)

	assert.Panics(t, func() { MustCron("also bad") })
}
