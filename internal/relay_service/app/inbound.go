package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/noeltrans/dispatch_services/internal/relay_service/adapters/chat"
	"github.com/noeltrans/dispatch_services/internal/relay_service/domain"
)

const (
	colorInbound = "#4286F4"
	colorReply   = "#006838"
)

// InboundSMS is one message delivered by the carrier webhook.
type InboundSMS struct {
	From     string
	Body     string
	MediaURL string
}

// HandleInboundSMS posts an SMS into chat. The first message from a number opens a new
// thread and records the mapping; later messages are threaded under it.
func (s *RelayService) HandleInboundSMS(ctx context.Context, msg InboundSMS) error {
	logger := s.logger.With("from", msg.From)

	name := s.driverName(ctx, msg.From)

	rec, err := s.correlations.FindByPhone(ctx, msg.From)
	if err != nil {
		inboundSMSCounter.WithLabelValues("failed").Inc()
		return fmt.Errorf("looking up conversation for %s: %w", msg.From, err)
	}

	if rec != nil {
		if _, err := s.chat.PostMessage(ctx, s.threadReplyMessage(rec.ThreadID, name, msg)); err != nil {
			inboundSMSCounter.WithLabelValues("failed").Inc()
			return fmt.Errorf("posting threaded reply: %w", err)
		}
		inboundSMSCounter.WithLabelValues("thread_reply").Inc()
		logger.InfoContext(ctx, "Inbound SMS added to existing thread", "thread_ts", rec.ThreadID, "driver", name)
		s.publish(ctx, SubjectInboundSMS, RelayEvent{Direction: "inbound", Source: "thread_reply", PhoneNumber: msg.From, ThreadID: rec.ThreadID, DriverName: name})
		return nil
	}

	ts, err := s.chat.PostMessage(ctx, s.newThreadMessage(name, msg))
	if err != nil {
		inboundSMSCounter.WithLabelValues("failed").Inc()
		return fmt.Errorf("posting new thread: %w", err)
	}
	if ts == "" {
		inboundSMSCounter.WithLabelValues("failed").Inc()
		return fmt.Errorf("posting new thread: chat platform returned no thread id")
	}

	if _, err := s.correlations.Create(ctx, msg.From, ts); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return s.relayIntoWinningThread(ctx, msg, name, ts)
		}
		inboundSMSCounter.WithLabelValues("failed").Inc()
		return fmt.Errorf("recording conversation %s -> %s: %w", msg.From, ts, err)
	}

	inboundSMSCounter.WithLabelValues("new_thread").Inc()
	logger.InfoContext(ctx, "Inbound SMS opened a new thread", "thread_ts", ts, "driver", name)
	s.publish(ctx, SubjectInboundSMS, RelayEvent{Direction: "inbound", Source: "new_thread", PhoneNumber: msg.From, ThreadID: ts, DriverName: name})
	return nil
}

// relayIntoWinningThread handles a lost insert race: another request for the same number
// recorded its thread first, so the message is re-posted there and orphanTS stays untracked.
func (s *RelayService) relayIntoWinningThread(ctx context.Context, msg InboundSMS, name, orphanTS string) error {
	existing, err := s.correlations.FindByPhone(ctx, msg.From)
	if err != nil {
		inboundSMSCounter.WithLabelValues("failed").Inc()
		return fmt.Errorf("re-reading conversation for %s: %w", msg.From, err)
	}
	if existing == nil {
		inboundSMSCounter.WithLabelValues("failed").Inc()
		return fmt.Errorf("recording conversation %s -> %s: %w", msg.From, orphanTS, domain.ErrDuplicateKey)
	}

	if _, err := s.chat.PostMessage(ctx, s.threadReplyMessage(existing.ThreadID, name, msg)); err != nil {
		inboundSMSCounter.WithLabelValues("failed").Inc()
		return fmt.Errorf("posting message into winning thread %s: %w", existing.ThreadID, err)
	}
	inboundSMSCounter.WithLabelValues("race_lost").Inc()
	s.logger.WarnContext(ctx, "Concurrent inbound SMS created the conversation first; message re-posted in its thread",
		"from", msg.From, "orphan_thread_ts", orphanTS, "thread_ts", existing.ThreadID)
	s.publish(ctx, SubjectInboundSMS, RelayEvent{Direction: "inbound", Source: "thread_reply", PhoneNumber: msg.From, ThreadID: existing.ThreadID, DriverName: name})
	return nil
}

// driverName never fails: directory errors are logged and the placeholder is used.
func (s *RelayService) driverName(ctx context.Context, phone string) string {
	driver, err := s.directory.LookupByPhone(ctx, phone)
	if err != nil {
		s.logger.WarnContext(ctx, "Driver directory lookup failed", "phone", phone, "error", err)
		return domain.UnknownDriverName
	}
	if driver == nil || driver.DisplayName == "" {
		return domain.UnknownDriverName
	}
	return driver.DisplayName
}

func (s *RelayService) newThreadMessage(name string, msg InboundSMS) chat.Message {
	return chat.Message{
		Channel:  s.settings.Channel,
		Username: name,
		Attachments: []chat.Attachment{{
			Fallback:   "SMS received through Twilio",
			Color:      colorInbound,
			Pretext:    msg.From,
			AuthorName: name,
			Title:      "SMS from Driver",
			ImageURL:   msg.MediaURL,
			Fields:     []chat.AttachmentField{{Title: "Message", Value: msg.Body}},
		}},
	}
}

func (s *RelayService) threadReplyMessage(threadTS, name string, msg InboundSMS) chat.Message {
	return chat.Message{
		Channel:  s.settings.Channel,
		Username: name,
		ThreadTS: threadTS,
		Attachments: []chat.Attachment{{
			Fallback:   "SMS received through Twilio",
			Color:      colorInbound,
			Pretext:    "SMS received",
			AuthorName: name,
			Title:      "SMS from Driver",
			ImageURL:   msg.MediaURL,
			Fields:     []chat.AttachmentField{{Title: "Message", Value: msg.Body}},
		}},
	}
}
