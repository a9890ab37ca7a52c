package chat

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

const (
	defaultBaseURL = "https://slack.com/api"
	// AuthorizeURL is where users are sent to grant the app a user token.
	AuthorizeURL = "https://slack.com/oauth/authorize"
)

// Client wraps the Slack Web API for the bot token and for per-user tokens. Calls are not retried.
type Client struct {
	http     *http.Client
	apiURL   string
	botToken string
	logger   *slog.Logger
}

func New(httpClient *http.Client, baseURL, botToken string, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL = strings.TrimSpace(strings.TrimRight(baseURL, "/"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:     httpClient,
		apiURL:   baseURL + "/",
		botToken: strings.TrimSpace(botToken),
		logger:   logger.With("component", "slack_client"),
	}
}

func (c *Client) api(token string) (*slack.Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("slack token is required")
	}
	return slack.New(token, slack.OptionAPIURL(c.apiURL), slack.OptionHTTPClient(c.http)), nil
}

// PostMessage posts msg with the bot token and returns the new message's ts.
func (c *Client) PostMessage(ctx context.Context, msg Message) (string, error) {
	return c.PostMessageAs(ctx, c.botToken, msg)
}

// PostMessageAs posts msg with token, which may be a user token.
func (c *Client) PostMessageAs(ctx context.Context, token string, msg Message) (string, error) {
	if strings.TrimSpace(msg.Channel) == "" {
		return "", fmt.Errorf("channel is required")
	}
	api, err := c.api(token)
	if err != nil {
		return "", err
	}

	opts := make([]slack.MsgOption, 0, 5)
	if msg.Text != "" {
		opts = append(opts, slack.MsgOptionText(msg.Text, false))
	}
	if len(msg.Attachments) > 0 {
		opts = append(opts, slack.MsgOptionAttachments(msg.Attachments...))
	}
	if msg.ThreadTS != "" {
		opts = append(opts, slack.MsgOptionTS(msg.ThreadTS))
	}
	if msg.Username != "" {
		opts = append(opts, slack.MsgOptionUsername(msg.Username))
	}
	if msg.AsUser {
		opts = append(opts, slack.MsgOptionAsUser(true))
	}

	channel, ts, err := api.PostMessageContext(ctx, msg.Channel, opts...)
	if err != nil {
		return "", fmt.Errorf("slack chat.postMessage failed: %w", err)
	}
	c.logger.DebugContext(ctx, "Chat message posted", "channel", channel, "ts", ts, "thread_ts", msg.ThreadTS)
	return ts, nil
}

// OpenDialog opens dialog for the interaction identified by triggerID.
func (c *Client) OpenDialog(ctx context.Context, token, triggerID string, dialog Dialog) error {
	if strings.TrimSpace(triggerID) == "" {
		return fmt.Errorf("trigger_id is required")
	}
	api, err := c.api(token)
	if err != nil {
		return err
	}
	if err := api.OpenDialogContext(ctx, triggerID, dialog); err != nil {
		return fmt.Errorf("slack dialog.open failed: %w", err)
	}
	return nil
}

// ExchangeCode trades an OAuth authorization code for a user access token.
// oauth.access is always sent to slack.com; only the transport of the configured
// HTTP client applies.
func (c *Client) ExchangeCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*OAuthAccess, error) {
	access, err := slack.GetOAuthResponseContext(ctx, c.http, clientID, clientSecret, code, redirectURI)
	if err != nil {
		return nil, fmt.Errorf("slack oauth.access failed: %w", err)
	}
	return access, nil
}
