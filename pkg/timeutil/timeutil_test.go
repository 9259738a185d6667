package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysBetween(t *testing.T) {
	start := Date(2026, time.March, 1)
	assert.Equal(t, 30, DaysBetween(start, Date(2026, time.March, 31)))
	assert.Equal(t, -1, DaysBetween(start, Date(2026, time.February, 28)))
	assert.Equal(t, 0, DaysBetween(start, start))
}

func TestDateOfUsesJakartaCalendar(t *testing.T) {
	// 18:30 UTC is already the next day in Jakarta.
	utc := time.Date(2026, time.May, 10, 18, 30, 0, 0, time.UTC)
	assert.Equal(t, Date(2026, time.May, 11), DateOf(utc))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-07-14")
	require.NoError(t, err)
	assert.Equal(t, Date(2026, time.July, 14), d)

	_, err = ParseDate("14/07/2026")
	assert.Error(t, err)
}

func TestMinMaxTime(t *testing.T) {
	a := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	b := a.Add(time.Hour)
	assert.Equal(t, a, MinTime(a, b))
	assert.Equal(t, b, MaxTime(a, b))
}
