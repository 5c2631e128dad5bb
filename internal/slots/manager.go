package slots

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/esthetix/clinic-portal/pkg/logging"
)

// AppointmentDirectory resolves appointments tied to slots or dates and
// renders their removal as transaction entries, so slot maintenance and
// appointment cleanup commit together.
type AppointmentDirectory interface {
	// DeleteTransactItemsBySlot returns delete entries for every appointment
	// booked into the given slot.
	DeleteTransactItemsBySlot(ctx context.Context, slotID string) ([]types.TransactWriteItem, error)
	// DeleteTransactItemsByDate returns delete entries for every appointment
	// on the given calendar date (YYYY-MM-DD), along with the ids of the
	// slots those appointments occupied so the caller can release them in the
	// same transaction.
	DeleteTransactItemsByDate(ctx context.Context, date string) ([]types.TransactWriteItem, []string, error)
}

// Manager performs the administrative mutations on the slot grid: toggling
// individual slots, closing whole dates, and applying weekly templates.
type Manager struct {
	store     *Store
	directory AppointmentDirectory
	logger    *logging.Logger
}

// NewManager builds a Manager. directory may be nil, in which case slot and
// date toggles skip appointment cleanup.
func NewManager(store *Store, directory AppointmentDirectory, logger *logging.Logger) *Manager {
	if store == nil {
		panic("slots: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{store: store, directory: directory, logger: logger}
}

// ToggleSlot flips the availability of one slot.
//
// Re-enabling an occupied slot cancels the booking: the appointment record is
// deleted in the same transaction that reopens the slot. Disabling a slot
// also clears its appointment reference, so a disabled slot never points at a
// live booking.
func (m *Manager) ToggleSlot(ctx context.Context, slotID string) (TimeSlot, error) {
	slot, err := m.store.Get(ctx, slotID)
	if err != nil {
		return TimeSlot{}, err
	}

	enable := !slot.IsAvailable
	items := []types.TransactWriteItem{
		availabilityTransactItem(m.store.table, slotID, enable, true),
	}
	if slot.Occupied() && m.directory != nil {
		cascade, err := m.directory.DeleteTransactItemsBySlot(ctx, slotID)
		if err != nil {
			return TimeSlot{}, fmt.Errorf("slots: resolve appointments for %s: %w", slotID, err)
		}
		items = append(items, cascade...)
		if len(cascade) > 0 {
			m.logger.Info("toggling slot cancels appointments",
				"slot_id", slotID, "appointments", len(cascade))
		}
	}

	if err := m.store.applyTransact(ctx, items); err != nil {
		return TimeSlot{}, err
	}

	slot.IsAvailable = enable
	slot.AppointmentID = NoAppointment
	return slot, nil
}

// ToggleDateStatus flips a calendar date between open and closed. Closing a
// date disables that weekday's slots and removes its appointments; reopening
// restores the slots. Both directions update the closed-date list in the same
// transaction. It returns true when the date ends up closed.
func (m *Manager) ToggleDateStatus(ctx context.Context, date string) (bool, error) {
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return false, fmt.Errorf("slots: bad date %q: %w", date, err)
	}

	closedDates := m.store.ClosedDates(ctx)
	wasClosed := false
	remaining := make([]string, 0, len(closedDates))
	for _, d := range closedDates {
		if d == date {
			wasClosed = true
			continue
		}
		remaining = append(remaining, d)
	}
	if !wasClosed {
		remaining = append(remaining, date)
	}

	datesItem, err := m.store.closedDatesTransactItem(remaining)
	if err != nil {
		return false, err
	}
	items := []types.TransactWriteItem{datesItem}

	var cascade []types.TransactWriteItem
	vacated := make(map[string]bool)
	if m.directory != nil {
		var bookedSlots []string
		cascade, bookedSlots, err = m.directory.DeleteTransactItemsByDate(ctx, date)
		if err != nil {
			return false, fmt.Errorf("slots: resolve appointments for %s: %w", date, err)
		}
		for _, id := range bookedSlots {
			vacated[id] = true
		}
		if len(cascade) > 0 {
			m.logger.Info("toggling date cancels appointments",
				"date", date, "appointments", len(cascade))
		}
	}

	// Slots whose appointment the cascade deletes also lose their reference,
	// otherwise they come back Occupied-but-available after a reopen and the
	// hour stays unbookable on every future occurrence of the weekday.
	grid := m.store.FetchGrid(ctx)
	day := DayName(parsed)
	for id := range grid {
		if grid[id].Day != day {
			continue
		}
		items = append(items, availabilityTransactItem(m.store.table, id, wasClosed, vacated[id]))
	}
	items = append(items, cascade...)

	if err := m.store.applyTransact(ctx, items); err != nil {
		return false, err
	}
	return !wasClosed, nil
}

// ApplyWeeklyTemplate expands the template into a fresh grid and replaces the
// stored one. Existing bookings on replaced slots are lost; callers are
// expected to surface that to the admin before submitting.
func (m *Manager) ApplyWeeklyTemplate(ctx context.Context, tmpl WeeklyTemplate) (int, error) {
	grid := tmpl.Expand()
	if len(grid) == 0 {
		return 0, fmt.Errorf("slots: template expands to no slots")
	}
	if err := m.store.ReplaceGrid(ctx, grid); err != nil {
		return 0, err
	}
	if err := m.store.SaveTemplate(ctx, tmpl); err != nil {
		m.logger.Error("failed to save weekly template", "error", err)
	}
	m.logger.Info("applied weekly schedule template", "slots", len(grid))
	return len(grid), nil
}
