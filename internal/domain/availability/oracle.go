// Package availability simulates a repairer scheduling backend.
//
// Availability is derived from a stable pattern computed over the repairer
// id, so the same (repairer, date) always yields the same answer. A real
// calendar integration can replace Oracle behind the same two calls.
package availability

import (
	"time"
)

const (
	DefaultWindowDays = 30
	DefaultModulus    = 7
)

// Slots is the fixed catalog of two-hour appointment windows, in display order
var Slots = []string{
	"08:00-10:00",
	"10:00-12:00",
	"12:00-14:00",
	"14:00-16:00",
	"16:00-18:00",
}

// Oracle answers availability questions for repairers
type Oracle struct {
	WindowDays int
	Modulus    int
	Now        func() time.Time
}

// NewOracle creates an oracle; non-positive values fall back to the defaults
func NewOracle(windowDays, modulus int) *Oracle {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if modulus <= 0 {
		modulus = DefaultModulus
	}
	return &Oracle{
		WindowDays: windowDays,
		Modulus:    modulus,
		Now:        time.Now,
	}
}

// Pattern sums the character codes of the repairer id modulo the oracle's modulus
func (o *Oracle) Pattern(repairerID string) int {
	sum := 0
	for _, r := range repairerID {
		sum += int(r)
	}
	return sum % o.modulus()
}

// UnavailableDates lists the blocked calendar dates in the look-ahead window,
// starting tomorrow. Dates are UTC midnights in ascending order.
func (o *Oracle) UnavailableDates(repairerID string) []time.Time {
	pattern := o.Pattern(repairerID)
	today := civilDate(o.now())

	var dates []time.Time
	for i := 1; i <= o.window(); i++ {
		d := today.AddDate(0, 0, i)
		if blocked(pattern, d) {
			dates = append(dates, d)
		}
	}
	return dates
}

// AvailableSlots returns the open slots on date, preserving catalog order.
// A blocked date has no slots.
func (o *Oracle) AvailableSlots(repairerID string, date time.Time) []string {
	pattern := o.Pattern(repairerID)
	d := civilDate(date)
	if blocked(pattern, d) {
		return []string{}
	}

	slots := make([]string, 0, len(Slots))
	for j, slot := range Slots {
		if (pattern+d.Day()+j)%4 == 0 {
			continue
		}
		slots = append(slots, slot)
	}
	return slots
}

// InWindow reports whether date falls in the bookable look-ahead, from
// tomorrow through WindowDays ahead.
func (o *Oracle) InWindow(date time.Time) bool {
	today := civilDate(o.now())
	d := civilDate(date)
	return d.After(today) && !d.After(today.AddDate(0, 0, o.window()))
}

// IsSlotAvailable reports whether slot is offered on a date inside the window
func (o *Oracle) IsSlotAvailable(repairerID string, date time.Time, slot string) bool {
	if !o.InWindow(date) {
		return false
	}
	for _, s := range o.AvailableSlots(repairerID, date) {
		if s == slot {
			return true
		}
	}
	return false
}

func (o *Oracle) window() int {
	if o.WindowDays <= 0 {
		return DefaultWindowDays
	}
	return o.WindowDays
}

func (o *Oracle) modulus() int {
	if o.Modulus <= 0 {
		return DefaultModulus
	}
	return o.Modulus
}

func (o *Oracle) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// blocked applies the date exclusion rule to a civil date
func blocked(pattern int, d time.Time) bool {
	if pattern%2 == 0 && d.Weekday() == time.Sunday {
		return true
	}
	return dayNumber(d)%int64(pattern+3) == 0
}

func dayNumber(d time.Time) int64 {
	return d.Unix() / 86400
}

// civilDate drops the clock and zone, keeping the calendar date as a UTC midnight
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
