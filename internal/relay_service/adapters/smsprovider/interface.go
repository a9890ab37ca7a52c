package smsprovider

import "context"

// SendRequest holds the data for one outbound SMS.
type SendRequest struct {
	To   string // carrier format, e.g. +15551234567
	Body string
}

// SendResponse is the carrier's acknowledgement of an accepted message.
type SendResponse struct {
	ProviderMessageID string
	Status            string // carrier status, e.g. "queued"
	ProviderName      string
}

// Adapter defines the interface for an SMS carrier adapter.
type Adapter interface {
	Send(ctx context.Context, req SendRequest) (*SendResponse, error)
	GetName() string
}
