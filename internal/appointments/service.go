package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/esthetix/clinic-portal/internal/observability/metrics"
	"github.com/esthetix/clinic-portal/internal/slots"
	"github.com/esthetix/clinic-portal/internal/users"
	"github.com/esthetix/clinic-portal/pkg/logging"
)

var tracer = otel.Tracer("clinic-portal/appointments")

// Notifier delivers appointment emails. Implementations are expected to be
// best-effort: a delivery failure never rolls back the booking.
type Notifier interface {
	BookingConfirmation(ctx context.Context, appt Appointment) error
	StatusUpdate(ctx context.Context, appt Appointment) error
}

// BookingRequest is a patient's request to book one slot.
type BookingRequest struct {
	Service string `json:"service"`
	Date    string `json:"date"` // YYYY-MM-DD
	Time    string `json:"time"` // HH:MM
	Notes   string `json:"notes"`
}

// BookingService creates appointments on behalf of patients.
type BookingService struct {
	slotStore *slots.Store
	store     *Store
	users     *users.Store
	notifier  Notifier
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger

	leadTime time.Duration
	location *time.Location

	now   func() time.Time
	newID func() string
}

// NewBookingService wires the booking flow. notifier and metrics may be nil.
func NewBookingService(
	slotStore *slots.Store,
	store *Store,
	userStore *users.Store,
	notifier Notifier,
	m *metrics.BookingMetrics,
	logger *logging.Logger,
	leadTime time.Duration,
	location *time.Location,
) *BookingService {
	if slotStore == nil || store == nil || userStore == nil {
		panic("appointments: booking service dependencies cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if location == nil {
		location = time.UTC
	}
	if leadTime <= 0 {
		leadTime = time.Hour
	}
	return &BookingService{
		slotStore: slotStore,
		store:     store,
		users:     userStore,
		notifier:  notifier,
		metrics:   m,
		logger:    logger,
		leadTime:  leadTime,
		location:  location,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// AvailableTimes returns the bookable start times for a calendar date,
// sorted ascending. Closed dates and starts inside the lead-time window are
// excluded.
func (s *BookingService) AvailableTimes(ctx context.Context, dateStr string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "booking.available_times")
	defer span.End()

	date, err := time.ParseInLocation("2006-01-02", dateStr, s.location)
	if err != nil {
		return nil, fmt.Errorf("appointments: bad date %q: %w", dateStr, err)
	}

	grid := s.slotStore.FetchGrid(ctx)
	closed := s.slotStore.ClosedDates(ctx)
	return slots.AvailableTimes(date, grid, closed, s.now().In(s.location), s.leadTime), nil
}

// Create books a slot for the user. The gates run in order: authentication,
// profile completeness, lead time, closed date, then the conditional slot
// reservation.
//
// When the reservation succeeds but the appointment record fails to write,
// the slot stays occupied and the error is returned; an admin reopens the
// slot via the dashboard. The returned warning is non-empty when the booking
// itself succeeded but the confirmation email could not be queued.
func (s *BookingService) Create(ctx context.Context, userID string, req BookingRequest) (Appointment, string, error) {
	ctx, span := tracer.Start(ctx, "booking.create")
	defer span.End()

	if userID == "" {
		s.metrics.ObserveBooking("unauthenticated")
		return Appointment{}, "", ErrNotAuthenticated
	}
	span.SetAttributes(attribute.String("booking.user_id", userID))

	profile, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			s.metrics.ObserveBooking("profile_incomplete")
			return Appointment{}, "", ErrProfileIncomplete
		}
		return Appointment{}, "", err
	}
	if !profile.Complete() {
		s.metrics.ObserveBooking("profile_incomplete")
		return Appointment{}, "", ErrProfileIncomplete
	}

	startAt, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+req.Time, s.location)
	if err != nil {
		return Appointment{}, "", fmt.Errorf("appointments: bad start %q %q: %w", req.Date, req.Time, err)
	}
	if startAt.Sub(s.now().In(s.location)) < s.leadTime {
		s.metrics.ObserveBooking("too_soon")
		return Appointment{}, "", ErrBookingTooSoon
	}

	// Closure is templated at the weekday level, so a date can sit on the
	// closed list while its weekday slots are open (close two same-weekday
	// dates, reopen one). The gate checks the list for the exact date.
	for _, closed := range s.slotStore.ClosedDates(ctx) {
		if closed == req.Date {
			s.metrics.ObserveBooking("date_closed")
			return Appointment{}, "", ErrDateClosed
		}
	}

	slotID := slots.Key(slots.DayName(startAt), req.Time)
	appt := Appointment{
		ID:     s.newID(),
		UserID: userID,
		UserDetails: UserDetails{
			Name:        profile.Name,
			Email:       profile.Email,
			Phone:       profile.Phone,
			Address:     profile.Address,
			DateOfBirth: profile.DateOfBirth,
		},
		Service:   req.Service,
		Date:      req.Date,
		Time:      req.Time,
		SlotID:    slotID,
		Status:    StatusPending,
		Notes:     req.Notes,
		CreatedAt: s.now().UTC(),
	}

	if err := s.slotStore.Reserve(ctx, slotID, appt.ID); err != nil {
		if errors.Is(err, slots.ErrSlotUnavailable) {
			s.metrics.ObserveBooking("slot_unavailable")
		}
		return Appointment{}, "", err
	}

	if err := s.store.Put(ctx, appt); err != nil {
		s.metrics.ObserveBooking("write_failed")
		s.logger.Error("slot reserved but appointment write failed",
			"slot_id", slotID, "appointment_id", appt.ID, "error", err)
		return Appointment{}, "", err
	}

	s.metrics.ObserveBooking("created")
	s.logger.Info("appointment booked",
		"appointment_id", appt.ID, "slot_id", slotID, "date", req.Date, "time", req.Time)

	warning := ""
	if s.notifier != nil {
		if err := s.notifier.BookingConfirmation(ctx, appt); err != nil {
			s.metrics.ObserveNotification("booking", "failed")
			s.logger.Error("failed to queue booking confirmation",
				"appointment_id", appt.ID, "error", err)
			warning = "appointment booked, but the confirmation email could not be sent"
		} else {
			s.metrics.ObserveNotification("booking", "queued")
		}
	}
	return appt, warning, nil
}

// ForUser returns the user's appointments.
func (s *BookingService) ForUser(ctx context.Context, userID string) ([]Appointment, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	return s.store.ListByUser(ctx, userID)
}
