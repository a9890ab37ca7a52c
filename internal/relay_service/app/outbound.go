package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/noeltrans/dispatch_services/internal/relay_service/adapters/chat"
	"github.com/noeltrans/dispatch_services/internal/relay_service/adapters/smsprovider"
)

// HandleThreadReply texts a person's reply in a tracked thread to the driver on the other end.
// Events that are not human thread replies, and threads with no conversation, are dropped.
func (s *RelayService) HandleThreadReply(ctx context.Context, ev chat.MessageEvent) error {
	if !chat.IsHumanThreadReply(ev) {
		s.logger.DebugContext(ctx, "Ignoring message event that is not a human thread reply",
			"subtype", ev.SubType, "bot_id", ev.BotID, "ts", ev.TimeStamp, "thread_ts", ev.ThreadTimeStamp)
		return nil
	}
	// Attachment-only posts (such as dialog confirmations) carry no text to send.
	if strings.TrimSpace(ev.Text) == "" {
		s.logger.DebugContext(ctx, "Ignoring thread reply without text", "ts", ev.TimeStamp, "thread_ts", ev.ThreadTimeStamp)
		return nil
	}

	rec, err := s.correlations.FindByThread(ctx, ev.ThreadTimeStamp)
	if err != nil {
		outboundSMSCounter.WithLabelValues("thread_reply", "failed").Inc()
		return fmt.Errorf("looking up conversation for thread %s: %w", ev.ThreadTimeStamp, err)
	}
	if rec == nil {
		s.logger.InfoContext(ctx, "Thread reply is not in a tracked SMS thread", "thread_ts", ev.ThreadTimeStamp, "user", ev.User)
		return nil
	}

	err = s.sendSMS(ctx, "thread_reply", rec.PhoneNumber, ev.Text)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Thread reply relayed as SMS", "thread_ts", ev.ThreadTimeStamp, "to", rec.PhoneNumber, "user", ev.User)
	s.publish(ctx, SubjectOutboundSMS, RelayEvent{Direction: "outbound", Source: "thread_reply", PhoneNumber: rec.PhoneNumber, ThreadID: ev.ThreadTimeStamp})
	return nil
}

func (s *RelayService) sendSMS(ctx context.Context, source, to, body string) error {
	resp, err := s.sms.Send(ctx, smsprovider.SendRequest{To: to, Body: body})
	outboundSMSCounter.WithLabelValues(source, outcomeLabel(err)).Inc()
	if err != nil {
		return fmt.Errorf("sending SMS to %s via %s: %w", to, s.sms.GetName(), err)
	}
	if resp != nil {
		s.logger.DebugContext(ctx, "SMS accepted by carrier", "to", to, "provider_message_id", resp.ProviderMessageID, "status", resp.Status)
	}
	return nil
}
