package clock

import (
	"fmt"
	"sort"
)

// Bucket is a coarse time-of-day label.
type Bucket uint8

const (
	Night Bucket = iota
	Dawn
	Morning
	Midday
	Afternoon
	Evening
)

var bucketNames = [...]string{"night", "dawn", "morning", "midday", "afternoon", "evening"}

func (b Bucket) String() string {
	if int(b) < len(bucketNames) {
		return bucketNames[b]
	}
	return "unknown"
}

// MarshalText encodes the bucket by name.
func (b Bucket) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// UnmarshalText decodes a bucket name.
func (b *Bucket) UnmarshalText(text []byte) error {
	for i, n := range bucketNames {
		if n == string(text) {
			*b = Bucket(i)
			return nil
		}
	}
	return fmt.Errorf("unknown time-of-day bucket %q", text)
}

// Window is a half-open hour range [Start, End). A window whose End is not
// after Start wraps past midnight.
type Window struct {
	Start int `yaml:"start" json:"start" env:"START"`
	End   int `yaml:"end" json:"end" env:"END"`
}

// Contains reports whether hour falls inside the window.
func (w Window) Contains(hour int) bool {
	if w.Start == w.End {
		return false
	}
	if w.Start < w.End {
		return hour >= w.Start && hour < w.End
	}
	return hour >= w.Start || hour < w.End
}

// Boundary starts a bucket at the given hour.
type Boundary struct {
	Hour   int    `yaml:"hour" json:"hour"`
	Bucket Bucket `yaml:"bucket" json:"bucket"`
}

// Config holds the tunable calendar predicates.
type Config struct {
	Business   Window     `yaml:"business_hours" envPrefix:"BUSINESS_"`
	Boundaries []Boundary `yaml:"buckets"`
}

// DefaultConfig returns a 9-to-17 business day and six buckets.
func DefaultConfig() Config {
	return Config{
		Business: Window{Start: 9, End: 17},
		Boundaries: []Boundary{
			{Hour: 0, Bucket: Night},
			{Hour: 5, Bucket: Dawn},
			{Hour: 7, Bucket: Morning},
			{Hour: 11, Bucket: Midday},
			{Hour: 14, Bucket: Afternoon},
			{Hour: 18, Bucket: Evening},
			{Hour: 22, Bucket: Night},
		},
	}
}

// Validate checks hour ranges.
func (c Config) Validate() error {
	if c.Business.Start < 0 || c.Business.Start > 23 || c.Business.End < 0 || c.Business.End > 24 {
		return fmt.Errorf("business hours %d-%d out of range", c.Business.Start, c.Business.End)
	}
	for _, b := range c.Boundaries {
		if b.Hour < 0 || b.Hour > 23 {
			return fmt.Errorf("bucket boundary hour %d out of range", b.Hour)
		}
	}
	return nil
}

func (c Config) normalized() Config {
	if len(c.Boundaries) == 0 {
		c.Boundaries = DefaultConfig().Boundaries
	}
	b := append([]Boundary(nil), c.Boundaries...)
	sort.SliceStable(b, func(i, j int) bool { return b[i].Hour < b[j].Hour })
	c.Boundaries = b
	return c
}

// BucketFor maps an hour to its bucket. Hours before the first boundary
// belong to the last bucket of the previous day.
func (c Config) BucketFor(hour int) Bucket {
	bs := c.Boundaries
	if len(bs) == 0 {
		bs = DefaultConfig().Boundaries
	}
	current := bs[len(bs)-1].Bucket
	for _, b := range bs {
		if hour < b.Hour {
			break
		}
		current = b.Bucket
	}
	return current
}

// At derives the calendar fields for a total minute count.
func (c Config) At(total uint64) Time {
	minute := int(total % MinutesPerHour)
	hour := int(total / MinutesPerHour % HoursPerDay)
	days := total / MinutesPerDay
	dayOfYear := int(days%DaysPerYear) + 1
	return Time{
		Total:      total,
		Year:       int(days/DaysPerYear) + 1,
		Month:      (dayOfYear-1)/DaysPerMonth + 1,
		DayOfMonth: (dayOfYear-1)%DaysPerMonth + 1,
		DayOfYear:  dayOfYear,
		Hour:       hour,
		Minute:     minute,
		Season:     Season((dayOfYear - 1) / DaysPerSeason),
		Bucket:     c.BucketFor(hour),
		Business:   c.Business.Contains(hour),
	}
}
