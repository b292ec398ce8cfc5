package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DayOfWeek identifies a day on the recurring weekly grid.
type DayOfWeek string

const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
	Sunday    DayOfWeek = "SUNDAY"
)

var dayIndex = map[DayOfWeek]int{
	Monday:    0,
	Tuesday:   1,
	Wednesday: 2,
	Thursday:  3,
	Friday:    4,
	Saturday:  5,
	Sunday:    6,
}

// Valid reports whether the value is one of the seven day constants.
func (d DayOfWeek) Valid() bool {
	_, ok := dayIndex[d]
	return ok
}

// Index returns the day's position with Monday as 0. Invalid days map to -1.
func (d DayOfWeek) Index() int {
	if i, ok := dayIndex[d]; ok {
		return i
	}
	return -1
}

// Weekend reports whether the day is Saturday or Sunday.
func (d DayOfWeek) Weekend() bool {
	return d == Saturday || d == Sunday
}

// ClockTime is a time of day stored as minutes since midnight. It survives
// JSON and database round-trips as "HH:MM" strings and plain integers
// respectively.
type ClockTime int

// ParseClockTime parses "HH:MM" (24h) into a ClockTime.
func ParseClockTime(raw string) (ClockTime, error) {
	var h, m int
	if _, err := fmt.Sscanf(raw, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q", raw)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock time %q out of range", raw)
	}
	return ClockTime(h*60 + m), nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MarshalJSON renders the clock time as "HH:MM".
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts "HH:MM" strings.
func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Value stores the clock time as an integer minute count.
func (c ClockTime) Value() (driver.Value, error) {
	return int64(c), nil
}

// Scan reads the integer minute count written by Value.
func (c *ClockTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case int64:
		*c = ClockTime(v)
		return nil
	case []byte:
		parsed, err := ParseClockTime(string(v))
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into ClockTime", src)
	}
}

// referenceWeek is the fixed week every weekly-recurring window is projected
// onto so that cross-day comparisons use ordinary time arithmetic. Monday,
// 2024-01-01 is a Monday.
var referenceWeek = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Project maps a day-of-week + clock time pair onto the reference week. Each
// day occupies its own 24h band, so windows on different days never compare
// as overlapping.
func Project(day DayOfWeek, at ClockTime) time.Time {
	return referenceWeek.AddDate(0, 0, day.Index()).Add(time.Duration(at) * time.Minute)
}

// TimeWindow is a recurring weekly interval [Start, End) on a single day.
type TimeWindow struct {
	Day   DayOfWeek `json:"day_of_week"`
	Start ClockTime `json:"start_time"`
	End   ClockTime `json:"end_time"`
}

// Overlaps applies the half-open interval rule on the projected windows:
// a.start < b.end && b.start < a.end.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	aStart, aEnd := Project(w.Day, w.Start), Project(w.Day, w.End)
	bStart, bEnd := Project(other.Day, other.Start), Project(other.Day, other.End)
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
