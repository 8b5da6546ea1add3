package models

import (
	"time"

	"github.com/google/uuid"
)

// Registration status values.
const (
	RegistrationStatusRegistered = "registered"
	RegistrationStatusAttended   = "attended"
	RegistrationStatusCancelled  = "cancelled"
)

// Notification kinds tied to a registration. Each kind maps to exactly one
// sent flag on the row.
const (
	NotificationConfirmation = "confirmation"
	NotificationReminder24h  = "reminder_24h"
	NotificationReminder3h   = "reminder_3h"
	NotificationReminder15m  = "reminder_15m"
)

// Registration is an attendee registration for a webinar, unique per
// (webinar_id, email). Emails are stored lower-cased.
type Registration struct {
	ID        uuid.UUID `json:"id"`
	WebinarID uuid.UUID `json:"webinar_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name,omitempty"`
	Company   string    `json:"company,omitempty"`
	Source    string    `json:"source,omitempty"`
	// Code is the human-facing registration ID, format WEB-<epochms>-<9 base36 chars>.
	Code   string `json:"registration_id"`
	Status string `json:"status"`

	ConfirmationSent   bool       `json:"confirmation_sent"`
	ConfirmationSentAt *time.Time `json:"confirmation_sent_at,omitempty"`
	Reminder24hSent    bool       `json:"reminder_24h_sent"`
	Reminder24hSentAt  *time.Time `json:"reminder_24h_sent_at,omitempty"`
	Reminder3hSent     bool       `json:"reminder_3h_sent"`
	Reminder3hSentAt   *time.Time `json:"reminder_3h_sent_at,omitempty"`
	Reminder15mSent    bool       `json:"reminder_15m_sent"`
	Reminder15mSentAt  *time.Time `json:"reminder_15m_sent_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
