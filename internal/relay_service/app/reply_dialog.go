package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/slack-go/slack"

	"github.com/noeltrans/dispatch_services/internal/relay_service/adapters/chat"
	"github.com/noeltrans/dispatch_services/internal/relay_service/domain"
)

const (
	// CallbackReplySMS identifies both the "reply" message action and the dialog it opens.
	CallbackReplySMS = "reply_sms"
	// DialogFieldBody is the textarea holding the reply.
	DialogFieldBody = "message_body"

	maxDialogTitle = 24
)

// OpenReplyDialog opens the reply form for a driver message, using the invoking user's own token.
func (s *RelayService) OpenReplyDialog(ctx context.Context, payload chat.InteractionPayload) error {
	cred, err := s.userCredential(ctx, payload.User.ID)
	if err != nil {
		return err
	}
	threadTS := payload.Message.ThreadTimestamp
	if threadTS == "" {
		threadTS = payload.MessageTs
	}
	if threadTS == "" {
		threadTS = payload.Message.Timestamp
	}
	if threadTS == "" {
		return fmt.Errorf("%w: reply action without a message", domain.ErrInvalidInput)
	}

	phone, err := s.phoneForThread(ctx, threadTS, payload.Message.Attachments)
	if err != nil {
		return err
	}

	channel := payload.Channel.ID
	if channel == "" {
		channel = s.settings.Channel
	}
	state, err := s.states.Encode(DialogState{ThreadID: threadTS, PhoneNumber: phone, ChannelID: channel})
	if err != nil {
		return err
	}

	title := "Reply to driver"
	if len(payload.Message.Attachments) > 0 && payload.Message.Attachments[0].AuthorName != "" {
		title = payload.Message.Attachments[0].AuthorName
	}

	body := slack.NewTextAreaInput(DialogFieldBody, "Reply Message", "")
	body.Placeholder = "Type your message here."
	dialog := chat.Dialog{
		CallbackID:     CallbackReplySMS,
		Title:          truncateRunes(title, maxDialogTitle),
		SubmitLabel:    "Reply",
		NotifyOnCancel: false,
		State:          state,
		Elements:       []slack.DialogElement{body},
	}
	if err := s.chat.OpenDialog(ctx, cred.AccessToken, payload.TriggerID, dialog); err != nil {
		return fmt.Errorf("opening reply dialog: %w", err)
	}
	s.logger.InfoContext(ctx, "Reply dialog opened", "user", payload.User.ID, "thread_ts", threadTS)
	return nil
}

// phoneForThread prefers the stored conversation; messages posted before a record existed
// fall back to the sender number shown as the attachment pretext.
func (s *RelayService) phoneForThread(ctx context.Context, threadTS string, attachments []chat.Attachment) (string, error) {
	rec, err := s.correlations.FindByThread(ctx, threadTS)
	if err != nil {
		return "", err
	}
	if rec != nil {
		return rec.PhoneNumber, nil
	}
	if len(attachments) > 0 {
		pretext := strings.TrimSpace(attachments[0].Pretext)
		if _, err := domain.ToDirectoryFormat(pretext); err == nil {
			return domain.ToCarrierFormat(pretext)
		}
	}
	return "", fmt.Errorf("%w: message is not from a driver", domain.ErrNotFound)
}

// SubmitReplyDialog sends the dialog text as SMS and confirms it in the thread as the submitting user.
func (s *RelayService) SubmitReplyDialog(ctx context.Context, payload chat.InteractionPayload) error {
	cred, err := s.userCredential(ctx, payload.User.ID)
	if err != nil {
		return err
	}
	body := strings.TrimSpace(payload.DialogSubmissionCallback.Submission[DialogFieldBody])
	if body == "" {
		return fmt.Errorf("%w: reply message is empty", domain.ErrInvalidInput)
	}
	state, err := s.states.Decode(payload.DialogSubmissionCallback.State)
	if err != nil {
		return err
	}

	if err := s.sendSMS(ctx, "dialog", state.PhoneNumber, body); err != nil {
		return err
	}
	s.publish(ctx, SubjectOutboundSMS, RelayEvent{Direction: "outbound", Source: "dialog", PhoneNumber: state.PhoneNumber, ThreadID: state.ThreadID})

	channel := state.ChannelID
	if channel == "" {
		channel = s.settings.Channel
	}
	confirmation := chat.Message{
		Channel:  channel,
		AsUser:   true,
		ThreadTS: state.ThreadID,
		Attachments: []chat.Attachment{{
			Fallback: "SMS Replied Successful!",
			Color:    colorReply,
			Pretext:  "SMS Reply",
			Title:    "SMS sent from Slack",
			Fields:   []chat.AttachmentField{{Title: "Message", Value: body}},
		}},
	}
	if _, err := s.chat.PostMessageAs(ctx, cred.AccessToken, confirmation); err != nil {
		// The SMS already went out; only the confirmation is missing.
		return fmt.Errorf("posting reply confirmation: %w", err)
	}
	s.logger.InfoContext(ctx, "Dialog reply sent", "user", payload.User.ID, "thread_ts", state.ThreadID, "to", state.PhoneNumber)
	return nil
}

// IsUserFacing reports whether err should be shown to the chat user rather than only logged.
func IsUserFacing(err error) bool {
	return errors.Is(err, domain.ErrAuthRequired) ||
		errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrInvalidState) ||
		errors.Is(err, domain.ErrNotFound)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
