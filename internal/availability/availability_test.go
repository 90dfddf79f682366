package availability

import (
	"testing"
	"time"
)

// 2026-08-24 is a Monday.
func monday(hour, minute int) time.Time {
	return time.Date(2026, time.August, 24, hour, minute, 0, 0, time.UTC)
}

func TestIsAvailableBoundaries(t *testing.T) {
	slots := []Slot{{Day: "Monday", Start: "09:00", End: "12:00"}}

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"start boundary inclusive", monday(9, 0), true},
		{"inside window", monday(10, 30), true},
		{"last minute", monday(11, 59), true},
		{"end boundary exclusive", monday(12, 0), false},
		{"after window", monday(14, 0), false},
		{"before window", monday(8, 59), false},
		{"wrong weekday", monday(10, 0).AddDate(0, 0, 1), false}, // Tuesday 10:00
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsAvailable(slots, tc.at); got != tc.want {
				t.Errorf("IsAvailable(%s) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}
}

func TestIsAvailableEmptySlots(t *testing.T) {
	if IsAvailable(nil, monday(10, 0)) {
		t.Error("nil slot list should never be available")
	}
	if IsAvailable([]Slot{}, monday(10, 0)) {
		t.Error("empty slot list should never be available")
	}
}

func TestIsAvailableSkipsMalformedSlots(t *testing.T) {
	slots := []Slot{
		{Day: "Monday", Start: "09:00"},          // missing end
		{Day: "Monday", End: "12:00"},            // missing start
		{Start: "09:00", End: "12:00"},           // missing day
		{Day: "Monday", Start: "13:00", End: "17:00"},
	}

	if IsAvailable(slots, monday(10, 0)) {
		t.Error("malformed slots must never match")
	}
	if !IsAvailable(slots, monday(13, 0)) {
		t.Error("well-formed slot after malformed ones should match")
	}
}

func TestIsAvailableMultipleSlotsSameDay(t *testing.T) {
	slots := []Slot{
		{Day: "Monday", Start: "09:00", End: "12:00"},
		{Day: "Monday", Start: "14:00", End: "17:00"},
		{Day: "Friday", Start: "09:00", End: "12:00"},
	}

	if !IsAvailable(slots, monday(15, 30)) {
		t.Error("afternoon slot should match")
	}
	if IsAvailable(slots, monday(12, 30)) {
		t.Error("gap between slots should not match")
	}
}
