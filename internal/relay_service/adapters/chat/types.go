package chat

import (
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

type (
	Attachment       = slack.Attachment
	AttachmentField  = slack.AttachmentField
	AttachmentAction = slack.AttachmentAction
	Dialog           = slack.Dialog

	// InteractionPayload is the JSON carried in the "payload" form field of interactive
	// requests: button clicks, message actions and dialog submissions.
	InteractionPayload = slack.InteractionCallback

	// CommandResponse is the JSON body answered to a slash command or interactive request.
	CommandResponse = slack.Msg

	// DialogErrors rejects a dialog submission with per-field messages.
	DialogErrors = slack.DialogInputValidationErrors
	DialogError  = slack.DialogInputValidationError

	OAuthAccess  = slack.OAuthResponse
	MessageEvent = slackevents.MessageEvent
)

// ResponseEphemeral shows a command response only to the user who ran it.
const ResponseEphemeral = "ephemeral"

// Message is a chat.postMessage request.
type Message struct {
	Channel     string
	Text        string
	Username    string
	ThreadTS    string
	AsUser      bool
	Attachments []Attachment
}

// IsHumanThreadReply reports whether ev is a reply inside a thread written by a person,
// as opposed to a top-level post, a bot echo or an edit/delete notification.
func IsHumanThreadReply(ev MessageEvent) bool {
	return ev.Type == "message" &&
		ev.SubType == "" &&
		ev.BotID == "" &&
		ev.User != "" &&
		ev.ThreadTimeStamp != "" &&
		ev.ThreadTimeStamp != ev.TimeStamp
}
