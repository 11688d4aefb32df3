package models

import (
	"math"
	"strconv"
	"time"
)

// DateLayout is the calendar date format used on the wire and in storage
const DateLayout = "2006-01-02"

// UsageEntry is the hours a device was used on one calendar date
type UsageEntry struct {
	DeviceID int       `json:"device_id"`
	Date     time.Time `json:"date"`
	Hours    float64   `json:"hours_used"`
}

// Usage returns hours x rating rounded to two decimals
func (e UsageEntry) Usage(rating float64) float64 {
	return Round2(e.Hours * rating)
}

// Round2 rounds to two decimal places
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatUsage renders a computed usage value with exactly two decimals
func FormatUsage(v float64) string {
	return strconv.FormatFloat(Round2(v), 'f', 2, 64)
}

// WeekdayLabels are the chart slot labels, Monday first
var WeekdayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Series is a week of computed usage values, one slot per weekday
type Series [7]float64

// IsZero reports whether every slot is zero
func (s Series) IsZero() bool {
	return s == Series{}
}

// Total sums the slots
func (s Series) Total() float64 {
	var total float64
	for _, v := range s {
		total += v
	}
	return Round2(total)
}

// WeekdaySlot maps a date to its Monday-first slot index
func WeekdaySlot(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeekStart returns midnight on the Monday of the week containing t
func WeekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -WeekdaySlot(day))
}

// Charts holds the three per-type series backing the dashboard charts.
// Active is the ID of the device whose series is shown, or 0.
type Charts struct {
	Electric Series
	Water    Series
	Waste    Series
	Active   int
}

// Reset zeroes every series and clears the active device
func (c *Charts) Reset() {
	*c = Charts{}
}

// Get returns the series for a resource type
func (c Charts) Get(t ResourceType) Series {
	switch t {
	case Electric:
		return c.Electric
	case Water:
		return c.Water
	case Waste:
		return c.Waste
	default:
		return Series{}
	}
}

// Show makes s the only non-zero series, assigned to type t
func (c *Charts) Show(deviceID int, t ResourceType, s Series) {
	c.Reset()
	c.Active = deviceID
	switch t {
	case Electric:
		c.Electric = s
	case Water:
		c.Water = s
	case Waste:
		c.Waste = s
	}
}
