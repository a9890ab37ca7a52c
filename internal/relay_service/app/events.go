package app

import (
	"context"
	"encoding/json"
	"time"
)

// Subjects for relay notifications published to the broker.
const (
	SubjectInboundSMS  = "relay.sms.inbound"
	SubjectOutboundSMS = "relay.sms.outbound"
)

// RelayEvent describes one relayed message. Bodies are not included.
type RelayEvent struct {
	Direction   string    `json:"direction"` // inbound or outbound
	Source      string    `json:"source"`    // new_thread, thread_reply, dialog, intro
	PhoneNumber string    `json:"phone_number"`
	ThreadID    string    `json:"thread_id,omitempty"`
	DriverName  string    `json:"driver_name,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// publish is best effort: failures are logged and never affect the relay.
func (s *RelayService) publish(ctx context.Context, subject string, ev RelayEvent) {
	ev.OccurredAt = s.now().UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to marshal relay event", "subject", subject, "error", err)
		return
	}
	if err := s.broker.Publish(ctx, subject, data); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish relay event", "subject", subject, "error", err)
	}
}
