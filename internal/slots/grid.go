// Package slots owns the weekly grid of bookable time slots and the
// closed-date overrides layered on top of it.
package slots

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// NoAppointment is the sentinel stored on a slot that has no booking.
const NoAppointment = "none"

const (
	openHour  = 9
	closeHour = 17
)

// weekdayNames is indexed by time.Weekday (Sunday = 0).
var weekdayNames = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// OperatingDays lists the days the default grid covers. Sunday is excluded.
var OperatingDays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// TimeSlot is a one-hour bookable window keyed by weekday and start time.
type TimeSlot struct {
	ID            string `json:"id"`
	Day           string `json:"day"`
	Start         string `json:"start"`
	End           string `json:"end"`
	IsAvailable   bool   `json:"isAvailable"`
	AppointmentID string `json:"appointmentId"`
}

// Occupied reports whether the slot references a real appointment.
func (s TimeSlot) Occupied() bool {
	return s.AppointmentID != "" && s.AppointmentID != NoAppointment
}

// DayName returns the lowercase weekday name for t.
func DayName(t time.Time) string {
	return weekdayNames[t.Weekday()]
}

// Key builds the canonical slot id, e.g. Key("monday", "09:00") == "monday_0900".
func Key(day, start string) string {
	return day + "_" + strings.ReplaceAll(start, ":", "")
}

// GenerateGrid produces the default weekly grid: six operating days with eight
// one-hour slots from 09:00 to 17:00, all available and unoccupied.
func GenerateGrid() map[string]TimeSlot {
	grid := make(map[string]TimeSlot, len(OperatingDays)*(closeHour-openHour))
	for _, day := range OperatingDays {
		for hour := openHour; hour < closeHour; hour++ {
			start := fmt.Sprintf("%02d:00", hour)
			end := fmt.Sprintf("%02d:00", hour+1)
			id := Key(day, start)
			grid[id] = TimeSlot{
				ID:            id,
				Day:           day,
				Start:         start,
				End:           end,
				IsAvailable:   true,
				AppointmentID: NoAppointment,
			}
		}
	}
	return grid
}

// AvailableTimes filters the grid down to bookable start times for a calendar
// date. A slot qualifies when it belongs to the date's weekday, is available,
// is unoccupied, and starts at least leadTime after now. Dates present in
// closedDates yield no times regardless of slot state.
func AvailableTimes(date time.Time, grid map[string]TimeSlot, closedDates []string, now time.Time, leadTime time.Duration) []string {
	dateStr := date.Format("2006-01-02")
	for _, closed := range closedDates {
		if closed == dateStr {
			return nil
		}
	}

	day := DayName(date)
	prefix := day + "_"
	var times []string
	for id, slot := range grid {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if !slot.IsAvailable || slot.Occupied() {
			continue
		}
		startAt, err := startOfSlot(date, slot.Start)
		if err != nil {
			continue
		}
		if startAt.Sub(now) < leadTime {
			continue
		}
		times = append(times, slot.Start)
	}
	sort.Strings(times)
	return times
}

func startOfSlot(date time.Time, start string) (time.Time, error) {
	t, err := time.Parse("15:04", start)
	if err != nil {
		return time.Time{}, fmt.Errorf("slots: bad start time %q: %w", start, err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}

// Window is an operating window within a day, e.g. {"09:00", "13:00"}.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DayTemplate describes one weekday in a weekly schedule template.
type DayTemplate struct {
	Open    bool     `json:"open"`
	Windows []Window `json:"windows"`
}

// WeeklyTemplate maps lowercase weekday names to their templates.
type WeeklyTemplate map[string]DayTemplate

// Expand turns a weekly template into a fresh slot grid, splitting every
// window into one-hour slots. Closed days and malformed windows contribute
// nothing. All produced slots are available and unoccupied: applying a
// template destroys prior slot state, bookings included.
func (t WeeklyTemplate) Expand() map[string]TimeSlot {
	grid := make(map[string]TimeSlot)
	for _, day := range weekdayNames {
		tmpl, ok := t[day]
		if !ok || !tmpl.Open {
			continue
		}
		for _, w := range tmpl.Windows {
			from, err1 := time.Parse("15:04", w.Start)
			to, err2 := time.Parse("15:04", w.End)
			if err1 != nil || err2 != nil || !from.Before(to) {
				continue
			}
			for cur := from; cur.Add(time.Hour).Compare(to) <= 0; cur = cur.Add(time.Hour) {
				start := cur.Format("15:04")
				end := cur.Add(time.Hour).Format("15:04")
				id := Key(day, start)
				grid[id] = TimeSlot{
					ID:            id,
					Day:           day,
					Start:         start,
					End:           end,
					IsAvailable:   true,
					AppointmentID: NoAppointment,
				}
			}
		}
	}
	return grid
}
