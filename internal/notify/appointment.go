package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/esthetix/clinic-portal/internal/appointments"
)

// prettyDate renders "2026-08-31" as "August 31, 2026". Unparseable input is
// passed through untouched.
func prettyDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("January 2, 2006")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ComposeBookingConfirmation builds the email sent when a booking request is
// received.
func ComposeBookingConfirmation(appt appointments.Appointment) EmailMessage {
	return EmailMessage{
		To:      appt.UserDetails.Email,
		ToName:  appt.UserDetails.Name,
		Subject: "We received your appointment request",
		Body: fmt.Sprintf(
			"Hi %s,\n\n"+
				"We received your request for %s on %s at %s. "+
				"Our team will review it shortly and you will get another email once it is confirmed.\n\n"+
				"Esthetix Clinic",
			appt.UserDetails.Name, appt.Service, prettyDate(appt.Date), appt.Time),
	}
}

// ComposeStatusUpdate builds the email sent when an admin moves an
// appointment through the workflow.
func ComposeStatusUpdate(appt appointments.Appointment) EmailMessage {
	status := capitalize(string(appt.Status))
	var line string
	switch appt.Status {
	case appointments.StatusApproved:
		line = "Your appointment is confirmed. We look forward to seeing you."
	case appointments.StatusRejected:
		line = "Unfortunately we could not accommodate this time. The slot has been reopened; please book another time that works for you."
	case appointments.StatusCompleted:
		line = "Thank you for visiting us. We hope to see you again soon."
	default:
		line = "Your appointment status has been updated."
	}
	return EmailMessage{
		To:      appt.UserDetails.Email,
		ToName:  appt.UserDetails.Name,
		Subject: fmt.Sprintf("Appointment %s: %s on %s", strings.ToLower(status), appt.Service, prettyDate(appt.Date)),
		Body: fmt.Sprintf(
			"Hi %s,\n\n"+
				"Your appointment for %s on %s at %s is now %s.\n%s\n\n"+
				"Esthetix Clinic",
			appt.UserDetails.Name, appt.Service, prettyDate(appt.Date), appt.Time, strings.ToLower(status), line),
	}
}
