// Package availability evaluates a doctor's declared weekly slots.
package availability

import "time"

// Slot is a recurring weekly interval during which bookings are allowed.
// Day is the English weekday name; Start/End are "15:04" clock times.
type Slot struct {
	Day   string `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// malformed reports whether the slot is missing any field. Such slots are
// inert: skipped during evaluation, never matched, never an error.
func (s Slot) malformed() bool {
	return s.Day == "" || s.Start == "" || s.End == ""
}

// IsAvailable reports whether at falls inside any slot. The start boundary
// is inclusive and the end boundary exclusive, so a 09:00-12:00 slot
// admits 09:00 and 11:59 but not 12:00. An empty slot list means the
// doctor is never available.
func IsAvailable(slots []Slot, at time.Time) bool {
	if len(slots) == 0 {
		return false
	}
	weekday := at.Weekday().String()
	clock := at.Format("15:04")
	for _, slot := range slots {
		if slot.malformed() {
			continue
		}
		if slot.Day == weekday && slot.Start <= clock && clock < slot.End {
			return true
		}
	}
	return false
}
