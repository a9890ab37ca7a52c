package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/noeltrans/dispatch_services/internal/relay_service/adapters/chat"
	"github.com/noeltrans/dispatch_services/internal/relay_service/domain"
)

const (
	// CallbackDriverChoice identifies the candidate buttons returned by SearchDrivers.
	CallbackDriverChoice = "driver_choice"

	introSMSBody = "Dispatch here, please reply to this message."
)

// SearchDrivers answers the search command "<firstName> [ignored text]" with an ephemeral
// list of matching drivers, one button per distinct phone number.
func (s *RelayService) SearchDrivers(ctx context.Context, text string) (*chat.CommandResponse, error) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: a first name is required", domain.ErrInvalidInput)
	}
	name := tokens[0]

	var candidates []domain.DriverRecord
	seen := make(map[string]bool)
	for driver, err := range s.directory.SearchByFirstName(ctx, name) {
		if err != nil {
			directorySearchCounter.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("searching directory for %q: %w", name, err)
		}
		if driver.MobileNumber == "" || seen[driver.MobileNumber] {
			continue
		}
		seen[driver.MobileNumber] = true
		candidates = append(candidates, driver)
	}

	s.logger.InfoContext(ctx, "Driver search completed", "name", name, "matches", len(candidates))

	if len(candidates) == 0 {
		directorySearchCounter.WithLabelValues("none").Inc()
		return &chat.CommandResponse{
			ResponseType: chat.ResponseEphemeral,
			Text:         fmt.Sprintf("No driver named *%s* was found in the directory.", name),
		}, nil
	}

	if len(candidates) == 1 {
		directorySearchCounter.WithLabelValues("single").Inc()
	} else {
		directorySearchCounter.WithLabelValues("multiple").Inc()
	}

	attachments := make([]chat.Attachment, 0, len(candidates))
	for _, c := range candidates {
		label := c.DisplayName
		if label == "" {
			label = c.MobileNumber
		}
		attachments = append(attachments, chat.Attachment{
			Fallback:   "Choose a driver to text",
			CallbackID: CallbackDriverChoice,
			Color:      colorInbound,
			Text:       fmt.Sprintf("%s  %s", label, c.MobileNumber),
			Actions: []chat.AttachmentAction{{
				Name:  "driver",
				Text:  label,
				Type:  "button",
				Value: c.MobileNumber,
			}},
		})
	}
	return &chat.CommandResponse{
		ResponseType: chat.ResponseEphemeral,
		Text:         fmt.Sprintf("Which *%s* should receive a text?", name),
		Attachments:  attachments,
	}, nil
}

// ResolveDriverChoice sends the introductory SMS for the chosen candidate. Nothing is recorded:
// the conversation starts when the driver replies.
func (s *RelayService) ResolveDriverChoice(ctx context.Context, payload chat.InteractionPayload) (*chat.CommandResponse, error) {
	actions := payload.ActionCallback.AttachmentActions
	if len(actions) == 0 || actions[0] == nil || strings.TrimSpace(actions[0].Value) == "" {
		return nil, fmt.Errorf("%w: no driver selected", domain.ErrInvalidInput)
	}
	choice := actions[0].Value

	phone, err := domain.ToCarrierFormat(choice)
	if err != nil {
		return nil, err
	}

	if err := s.sendSMS(ctx, "intro", phone, introSMSBody); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Intro SMS sent to chosen driver", "to", phone, "user", payload.User.ID)
	s.publish(ctx, SubjectOutboundSMS, RelayEvent{Direction: "outbound", Source: "intro", PhoneNumber: phone})

	return &chat.CommandResponse{
		ResponseType:    chat.ResponseEphemeral,
		ReplaceOriginal: true,
		Text:            fmt.Sprintf("Intro SMS sent to %s. Their reply will open a thread in %s.", choice, s.settings.Channel),
	}, nil
}
