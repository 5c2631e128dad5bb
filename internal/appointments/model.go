// Package appointments holds the booking records layered on top of the slot
// grid and the services that create and manage them.
package appointments

import (
	"errors"
	"strings"
	"time"
)

// Status is an appointment's position in the review workflow.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is one of the known workflow statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// UserDetails is the contact snapshot copied onto an appointment at booking
// time, so later profile edits do not rewrite history.
type UserDetails struct {
	Name        string `json:"name" dynamodbav:"name"`
	Email       string `json:"email" dynamodbav:"email"`
	Phone       string `json:"phone" dynamodbav:"phone"`
	Address     string `json:"address" dynamodbav:"address"`
	DateOfBirth string `json:"dateOfBirth" dynamodbav:"dateOfBirth"`
}

// Complete reports whether every required contact field is filled in.
func (d UserDetails) Complete() bool {
	for _, v := range []string{d.Name, d.Email, d.Phone, d.Address, d.DateOfBirth} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// Appointment is one booking of a slot on a calendar date.
type Appointment struct {
	ID          string      `json:"id" dynamodbav:"sk"`
	UserID      string      `json:"userId" dynamodbav:"userId"`
	UserDetails UserDetails `json:"userDetails" dynamodbav:"userDetails"`
	Service     string      `json:"service" dynamodbav:"service"`
	Date        string      `json:"date" dynamodbav:"date"`
	Time        string      `json:"time" dynamodbav:"time"`
	SlotID      string      `json:"slotId" dynamodbav:"slotId"`
	Status      Status      `json:"status" dynamodbav:"status"`
	Notes       string      `json:"notes,omitempty" dynamodbav:"notes"`
	CreatedAt   time.Time   `json:"createdAt" dynamodbav:"createdAt"`
}

// StartAt returns the appointment's start instant in loc.
func (a Appointment) StartAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", a.Date+" "+a.Time, loc)
}

var (
	// ErrNotAuthenticated indicates a booking attempt without a signed-in user.
	ErrNotAuthenticated = errors.New("appointments: not authenticated")
	// ErrProfileIncomplete indicates the user's contact profile is missing
	// required fields.
	ErrProfileIncomplete = errors.New("appointments: profile incomplete")
	// ErrBookingTooSoon indicates the requested start violates the minimum
	// booking lead time.
	ErrBookingTooSoon = errors.New("appointments: booking too soon")
	// ErrDateClosed indicates the requested calendar date is on the
	// closed-dates list.
	ErrDateClosed = errors.New("appointments: date closed")
	// ErrAppointmentNotFound indicates the appointment id does not exist.
	ErrAppointmentNotFound = errors.New("appointments: appointment not found")
	// ErrInvalidStatus indicates an unknown workflow status.
	ErrInvalidStatus = errors.New("appointments: invalid status")
)
