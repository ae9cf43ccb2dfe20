package model

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// ClockTime is a wall-clock time of day at minute precision. Seconds,
// fractions and zone offsets are dropped when parsing.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime accepts HH:MM, HH:MM:SS and HH:MM:SS.ffffff, optionally
// followed by a zone offset (Z, +HH:MM, -HH).
func ParseClockTime(s string) (ClockTime, error) {
	raw := strings.TrimSpace(s)
	if i := strings.IndexAny(raw, "Z+-"); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		raw = raw[:i]
	}

	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return ClockTime{}, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return ClockTime{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return ClockTime{}, fmt.Errorf("invalid minute in %q", s)
	}
	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return ClockTime{}, fmt.Errorf("invalid second in %q", s)
		}
	}

	return ClockTime{Hour: hour, Minute: minute}, nil
}

func MustClockTime(s string) ClockTime {
	t, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t ClockTime) Value() (driver.Value, error) {
	return fmt.Sprintf("%02d:%02d:00", t.Hour, t.Minute), nil
}

func (t *ClockTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*t = ClockTime{Hour: v.Hour(), Minute: v.Minute()}
		return nil
	case []byte:
		return t.parseInto(string(v))
	case string:
		return t.parseInto(v)
	default:
		return fmt.Errorf("cannot scan %T into ClockTime", src)
	}
}

func (t *ClockTime) parseInto(s string) error {
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t ClockTime) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ClockTime) UnmarshalText(b []byte) error {
	return t.parseInto(string(b))
}

// Weekday names a day of the week as stored in custom_days.
type Weekday string

const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
	Sunday    Weekday = "SUNDAY"
)

var weekdayOrder = map[Weekday]int{
	Monday: 0, Tuesday: 1, Wednesday: 2, Thursday: 3, Friday: 4, Saturday: 5, Sunday: 6,
}

func (d Weekday) Valid() bool {
	_, ok := weekdayOrder[d]
	return ok
}

// WeekdayOf maps a time.Weekday onto the stored representation.
func WeekdayOf(d time.Weekday) Weekday {
	switch d {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// Weekdays is stored as a postgres text array; an empty set is NULL.
type Weekdays []Weekday

// Normalize drops duplicates and orders the days Monday first.
func (w Weekdays) Normalize() Weekdays {
	if len(w) == 0 {
		return nil
	}
	seen := make(map[Weekday]bool, len(w))
	out := make(Weekdays, 0, len(w))
	for _, d := range w {
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return weekdayOrder[out[i]] < weekdayOrder[out[j]]
	})
	return out
}

func (w Weekdays) Contains(d Weekday) bool {
	for _, v := range w {
		if v == d {
			return true
		}
	}
	return false
}

func (w Weekdays) Value() (driver.Value, error) {
	if len(w) == 0 {
		return nil, nil
	}
	arr := make(pq.StringArray, len(w))
	for i, d := range w {
		arr[i] = string(d)
	}
	return arr.Value()
}

func (w *Weekdays) Scan(src interface{}) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return fmt.Errorf("failed to scan custom_days: %w", err)
	}
	if len(arr) == 0 {
		*w = nil
		return nil
	}
	out := make(Weekdays, len(arr))
	for i, s := range arr {
		out[i] = Weekday(s)
	}
	*w = out
	return nil
}
