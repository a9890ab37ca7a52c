package smsprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTwilioBaseURL = "https://api.twilio.com/2010-04-01"

type TwilioSMSProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	accountSID string
	authToken  string
	fromNumber string
}

func NewTwilioSMSProvider(logger *slog.Logger, baseURL, accountSID, authToken, fromNumber string, httpClient *http.Client) *TwilioSMSProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultTwilioBaseURL
	}
	return &TwilioSMSProvider{
		logger:     logger.With("provider", "twilio"),
		httpClient: httpClient,
		baseURL:    baseURL,
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
	}
}

// twilioMessageResponse is the subset of the Messages resource we read back.
type twilioMessageResponse struct {
	SID          string  `json:"sid"`
	Status       string  `json:"status"`
	ErrorCode    *int    `json:"error_code"`
	ErrorMessage *string `json:"error_message"`
}

// twilioErrorResponse is returned with non-2xx statuses.
type twilioErrorResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func (p *TwilioSMSProvider) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	if strings.TrimSpace(req.To) == "" {
		return nil, fmt.Errorf("twilio: recipient is required")
	}
	p.logger.InfoContext(ctx, "TwilioSMSProvider: Send called", "to", req.To, "body_length", len(req.Body))

	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", p.fromNumber)
	form.Set("Body", req.Body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", p.baseURL, url.PathEscape(p.accountSID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request for Twilio: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(p.accountSID, p.authToken)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to send request to Twilio", "error", err, "to", req.To)
		return nil, fmt.Errorf("failed to send request to Twilio: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("twilio request failed (status %d), and failed to read response body: %w", httpResp.StatusCode, err)
	}
	p.logger.DebugContext(ctx, "Received HTTP response from Twilio", "status_code", httpResp.StatusCode, "body", string(respBody))

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		errMsg := fmt.Sprintf("twilio API error: status %d", httpResp.StatusCode)
		var twErr twilioErrorResponse
		if json.Unmarshal(respBody, &twErr) == nil && twErr.Message != "" {
			errMsg = fmt.Sprintf("twilio API error: status %d, code %d: %s", httpResp.StatusCode, twErr.Code, twErr.Message)
		}
		p.logger.WarnContext(ctx, "Twilio send failed", "status_code", httpResp.StatusCode, "error", errMsg, "to", req.To)
		return nil, fmt.Errorf("%s", errMsg)
	}

	var msg twilioMessageResponse
	if err := json.Unmarshal(respBody, &msg); err != nil {
		p.logger.WarnContext(ctx, "Twilio accepted the message but the response body could not be parsed", "error", err)
		return &SendResponse{ProviderName: p.GetName(), Status: "accepted"}, nil
	}
	if msg.ErrorCode != nil && *msg.ErrorCode != 0 {
		detail := ""
		if msg.ErrorMessage != nil {
			detail = *msg.ErrorMessage
		}
		return nil, fmt.Errorf("twilio rejected message %s: code %d %s", msg.SID, *msg.ErrorCode, detail)
	}

	p.logger.InfoContext(ctx, "Successfully sent SMS via Twilio", "provider_message_id", msg.SID, "status", msg.Status, "to", req.To)
	return &SendResponse{
		ProviderMessageID: msg.SID,
		Status:            msg.Status,
		ProviderName:      p.GetName(),
	}, nil
}

func (p *TwilioSMSProvider) GetName() string {
	return "twilio"
}
