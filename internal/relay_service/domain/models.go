package domain

import (
	"time"

	"github.com/google/uuid"
)

// UnknownDriverName labels chat posts when the directory has no entry for the sender.
const UnknownDriverName = "Unknown Name"

// CorrelationRecord links an SMS sender's phone number to the chat thread carrying that conversation.
// Records are append-only: created on the first inbound SMS from a number and never updated.
type CorrelationRecord struct {
	ID          uuid.UUID `json:"id"`
	PhoneNumber string    `json:"phone_number"` // carrier format, e.g. +15551234567
	ThreadID    string    `json:"thread_id"`    // chat thread timestamp, e.g. 1234.5678
	CreatedAt   time.Time `json:"created_at"`
}

// NewCorrelationRecord creates a record with a fresh ID.
func NewCorrelationRecord(phoneNumber, threadID string) *CorrelationRecord {
	return &CorrelationRecord{
		ID:          uuid.New(),
		PhoneNumber: phoneNumber,
		ThreadID:    threadID,
		CreatedAt:   time.Now().UTC(),
	}
}

// UserCredential is a chat user's OAuth access token, used to post and open dialogs as that user.
type UserCredential struct {
	UserID      string    `json:"user_id"`
	AccessToken string    `json:"-"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DriverRecord is a row of the external driver directory. Read-only.
type DriverRecord struct {
	MobileNumber string `json:"mobile_number"` // directory format, e.g. (555) 123-4567
	DisplayName  string `json:"display_name"`
}
