// Package clock provides the simulated calendar that drives the world.
// One unit of simulated time is one minute; every calendar field is derived
// from the total elapsed minutes with integer floor division.
package clock

import "fmt"

// Calendar layout. A year is 12 months of 30 days.
const (
	MinutesPerHour   = 60
	HoursPerDay      = 24
	MinutesPerDay    = MinutesPerHour * HoursPerDay // 1440
	DaysPerMonth     = 30
	MonthsPerYear    = 12
	DaysPerYear      = DaysPerMonth * MonthsPerYear // 360
	DaysPerSeason    = DaysPerYear / 4              // 90
	MinutesPerSeason = MinutesPerDay * DaysPerSeason
	MinutesPerYear   = MinutesPerDay * DaysPerYear
)

// Season of the year.
type Season uint8

const (
	Spring Season = iota
	Summer
	Autumn
	Winter
)

var seasonNames = [4]string{"Spring", "Summer", "Autumn", "Winter"}

func (s Season) String() string {
	if int(s) < len(seasonNames) {
		return seasonNames[s]
	}
	return "Unknown"
}

// Clock owns the monotonic simulated-time counter.
type Clock struct {
	total uint64
	cfg   Config
}

// New creates a clock at the given total elapsed minutes.
func New(total uint64, cfg Config) *Clock {
	return &Clock{total: total, cfg: cfg.normalized()}
}

// Total returns the total elapsed simulated minutes.
func (c *Clock) Total() uint64 { return c.total }

// Config returns the clock's configuration.
func (c *Clock) Config() Config { return c.cfg }

// Advance moves the clock forward and reports which calendar boundaries were
// crossed. Advancing by zero crosses nothing.
func (c *Clock) Advance(minutes uint64) Crossing {
	before := c.total
	c.total += minutes
	return crossings(before, c.total)
}

func crossings(before, after uint64) Crossing {
	var x Crossing
	if before/MinutesPerHour != after/MinutesPerHour {
		x |= HourChanged
	}
	if before/MinutesPerDay != after/MinutesPerDay {
		x |= DayChanged
	}
	if before/(MinutesPerDay*DaysPerMonth) != after/(MinutesPerDay*DaysPerMonth) {
		x |= MonthChanged
	}
	if before/MinutesPerSeason != after/MinutesPerSeason {
		x |= SeasonChanged
	}
	if before/MinutesPerYear != after/MinutesPerYear {
		x |= YearChanged
	}
	return x
}

// Now returns the calendar snapshot for the current total.
func (c *Clock) Now() Time { return c.cfg.At(c.total) }

// Hour returns the current hour of day (0..23).
func (c *Clock) Hour() int { return int(c.total / MinutesPerHour % HoursPerDay) }

// Bucket returns the time-of-day bucket for the current hour.
func (c *Clock) Bucket() Bucket { return c.cfg.BucketFor(c.Hour()) }

// IsBusinessHours reports whether the current hour lies in the default
// working-hour window.
func (c *Clock) IsBusinessHours() bool { return c.cfg.Business.Contains(c.Hour()) }

// IsNight reports whether the current hour is in the night bucket.
func (c *Clock) IsNight() bool { return c.Bucket() == Night }

// Time is an immutable calendar snapshot.
type Time struct {
	Total      uint64 `json:"total"`
	Year       int    `json:"year"`
	Month      int    `json:"month"`
	DayOfMonth int    `json:"day_of_month"`
	DayOfYear  int    `json:"day_of_year"`
	Hour       int    `json:"hour"`
	Minute     int    `json:"minute"`
	Season     Season `json:"season"`
	Bucket     Bucket `json:"bucket"`
	Business   bool   `json:"business_hours"`
}

// String returns a human-readable time like "Spring Day 3, 9:05 Year 1".
func (t Time) String() string {
	seasonDay := (t.DayOfYear-1)%DaysPerSeason + 1
	return fmt.Sprintf("%s Day %d, %d:%02d Year %d", t.Season, seasonDay, t.Hour, t.Minute, t.Year)
}

// Crossing is a set of calendar boundaries crossed by one Advance.
type Crossing uint8

const (
	HourChanged Crossing = 1 << iota
	DayChanged
	MonthChanged
	SeasonChanged
	YearChanged
)

// Has reports whether every boundary in b was crossed.
func (x Crossing) Has(b Crossing) bool { return x&b == b }

// Any reports whether any boundary was crossed.
func (x Crossing) Any() bool { return x != 0 }
