package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := Parse(s)
	require.NoError(t, err)
	return d
}

func TestDay_UsesWallClock(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+9", 9*3600)
	late := time.Date(2026, 10, 17, 23, 30, 0, 0, loc)
	assert.Equal(t, "2026-10-17", Key(Day(late)))
	assert.Equal(t, time.UTC, Day(late).Location())
}

func TestLastWeekdayOnOrBefore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		today string
		want  string
	}{
		{"2026-10-14", "2026-10-14"}, // Wednesday
		{"2026-10-17", "2026-10-14"},
		{"2026-10-13", "2026-10-07"},
		{"2026-10-01", "2026-09-30"},
	}
	for _, tt := range tests {
		got := LastWeekdayOnOrBefore(mustDay(t, tt.today), time.Wednesday)
		assert.Equal(t, tt.want, Key(got), tt.today)
	}
}

func TestAddMonths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from string
		n    int
		want string
	}{
		{"2026-10-17", 3, "2027-01-17"},
		{"2027-01-31", 1, "2027-02-28"},
		{"2028-01-31", 1, "2028-02-29"},
		{"2026-03-31", -1, "2026-02-28"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Key(AddMonths(mustDay(t, tt.from), tt.n)), tt.from)
	}
}

func TestIsFirstWeekdayOfMonth(t *testing.T) {
	t.Parallel()

	assert.True(t, IsFirstWeekdayOfMonth(mustDay(t, "2026-11-04"), time.Wednesday))
	assert.False(t, IsFirstWeekdayOfMonth(mustDay(t, "2026-11-11"), time.Wednesday))
	assert.False(t, IsFirstWeekdayOfMonth(mustDay(t, "2026-11-05"), time.Wednesday))
}

func TestMonthDay(t *testing.T) {
	t.Parallel()

	md, err := ParseMonthDay("02-29")
	require.NoError(t, err)
	assert.Equal(t, "02-29", md.String())
	assert.Equal(t, "2027-02-28", Key(md.In(2027)))
	assert.Equal(t, "2028-02-29", Key(md.In(2028)))

	for _, bad := range []string{"13-01", "02-30", "00-10", "x"} {
		_, err := ParseMonthDay(bad)
		assert.Error(t, err, bad)
	}

	assert.Less(t, MonthDay{time.February, 28}.Ordinal(), MonthDay{time.February, 29}.Ordinal())
	assert.Less(t, MonthDay{time.February, 29}.Ordinal(), MonthDay{time.March, 1}.Ordinal())
}

func TestNextBirthday(t *testing.T) {
	t.Parallel()

	tests := []struct {
		birth, today string
		want         string
		age          int
	}{
		{"1990-10-17", "2026-10-17", "2026-10-17", 36},
		{"1990-10-16", "2026-10-17", "2027-10-16", 37},
		{"1992-02-29", "2026-10-17", "2027-02-28", 35},
		{"1992-02-29", "2027-10-17", "2028-02-29", 36},
	}
	for _, tt := range tests {
		at, age := NextBirthday(mustDay(t, tt.birth), mustDay(t, tt.today))
		assert.Equal(t, tt.want, Key(at), tt.birth)
		assert.Equal(t, tt.age, age, tt.birth)
	}
}
