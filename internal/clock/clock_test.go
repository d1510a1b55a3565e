package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAt(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name   string
		total  uint64
		year   int
		doy    int
		month  int
		hour   int
		minute int
		season Season
	}{
		{name: "origin", total: 0, year: 1, doy: 1, month: 1, hour: 0, minute: 0, season: Spring},
		{name: "last minute of day one", total: 1439, year: 1, doy: 1, month: 1, hour: 23, minute: 59, season: Spring},
		{name: "first minute of day two", total: 1440, year: 1, doy: 2, month: 1, hour: 0, minute: 0, season: Spring},
		{name: "second month", total: 30 * MinutesPerDay, year: 1, doy: 31, month: 2, hour: 0, season: Spring},
		{name: "summer", total: 90 * MinutesPerDay, year: 1, doy: 91, month: 4, season: Summer},
		{name: "last day of year", total: 359*MinutesPerDay + 600, year: 1, doy: 360, month: 12, hour: 10, season: Winter},
		{name: "second year", total: MinutesPerYear, year: 2, doy: 1, month: 1, season: Spring},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.At(tt.total)
			assert.Equal(t, tt.year, got.Year)
			assert.Equal(t, tt.doy, got.DayOfYear)
			assert.Equal(t, tt.month, got.Month)
			assert.Equal(t, tt.hour, got.Hour)
			assert.Equal(t, tt.minute, got.Minute)
			assert.Equal(t, tt.season, got.Season)
		})
	}
}

func TestAdvanceCrossings(t *testing.T) {
	c := New(0, DefaultConfig())

	x := c.Advance(0)
	assert.False(t, x.Any())

	x = c.Advance(59)
	assert.False(t, x.Any())

	x = c.Advance(1)
	assert.True(t, x.Has(HourChanged))
	assert.False(t, x.Has(DayChanged))

	c = New(1439, DefaultConfig())
	x = c.Advance(1)
	assert.True(t, x.Has(HourChanged|DayChanged))
	assert.False(t, x.Has(SeasonChanged))

	c = New(MinutesPerYear-1, DefaultConfig())
	x = c.Advance(1)
	assert.True(t, x.Has(HourChanged|DayChanged|MonthChanged|SeasonChanged|YearChanged))

	// A single large step still reports each boundary once.
	c = New(0, DefaultConfig())
	x = c.Advance(3 * MinutesPerYear)
	assert.True(t, x.Has(YearChanged))
	assert.Equal(t, uint64(3*MinutesPerYear), c.Total())
}

func TestAdvanceIsAdditive(t *testing.T) {
	c := New(0, DefaultConfig())
	for i := 0; i < 500; i++ {
		c.Advance(7)
	}
	assert.Equal(t, uint64(3500), c.Total())
}

func TestBuckets(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, Night, cfg.BucketFor(0))
	assert.Equal(t, Night, cfg.BucketFor(4))
	assert.Equal(t, Dawn, cfg.BucketFor(5))
	assert.Equal(t, Morning, cfg.BucketFor(9))
	assert.Equal(t, Midday, cfg.BucketFor(12))
	assert.Equal(t, Afternoon, cfg.BucketFor(15))
	assert.Equal(t, Evening, cfg.BucketFor(20))
	assert.Equal(t, Night, cfg.BucketFor(23))

	// Boundaries that don't start at midnight wrap from the last bucket.
	shifted := Config{Boundaries: []Boundary{{Hour: 6, Bucket: Morning}, {Hour: 20, Bucket: Night}}}
	assert.Equal(t, Night, shifted.BucketFor(3))
	assert.Equal(t, Morning, shifted.BucketFor(6))
}

func TestBusinessHours(t *testing.T) {
	c := New(8*MinutesPerHour+59, DefaultConfig())
	assert.False(t, c.IsBusinessHours())
	c.Advance(1)
	assert.True(t, c.IsBusinessHours())
	c.Advance(8 * MinutesPerHour)
	assert.False(t, c.IsBusinessHours(), "17:00 is outside a 9-17 window")

	overnight := Window{Start: 22, End: 6}
	assert.True(t, overnight.Contains(23))
	assert.True(t, overnight.Contains(2))
	assert.False(t, overnight.Contains(12))
	assert.False(t, Window{}.Contains(0))
}

func TestIsNight(t *testing.T) {
	c := New(2*MinutesPerHour, DefaultConfig())
	assert.True(t, c.IsNight())
	c.Advance(10 * MinutesPerHour)
	assert.False(t, c.IsNight())
}

func TestTimeString(t *testing.T) {
	tm := DefaultConfig().At(91*MinutesPerDay + 9*MinutesPerHour + 5)
	assert.Equal(t, "Summer Day 2, 9:05 Year 1", tm.String())
}
