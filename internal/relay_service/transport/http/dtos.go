package http

import (
	"encoding/json"
	"net/url"

	"github.com/slack-go/slack"
)

// InboundSMSRequest is the carrier's form-encoded webhook for a received message.
type InboundSMSRequest struct {
	From     string `validate:"required,e164"`
	Body     string `validate:"required_without=MediaURL"`
	MediaURL string `validate:"omitempty,url"`
}

func inboundSMSFromForm(form url.Values) InboundSMSRequest {
	return InboundSMSRequest{
		From:     form.Get("From"),
		Body:     form.Get("Body"),
		MediaURL: form.Get("MediaUrl0"),
	}
}

// SearchCommandRequest is the slash command used to text a driver by first name.
type SearchCommandRequest struct {
	Text      string `validate:"required"`
	UserID    string
	ChannelID string
}

func searchCommandFromSlash(cmd slack.SlashCommand) SearchCommandRequest {
	return SearchCommandRequest{
		Text:      cmd.Text,
		UserID:    cmd.UserID,
		ChannelID: cmd.ChannelID,
	}
}

// dialogStateFromPayload returns the opaque state string a dialog was opened with.
// Block interactions reuse the key for an object, which yields "".
func dialogStateFromPayload(raw string) string {
	var v struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return ""
	}
	return v.State
}
