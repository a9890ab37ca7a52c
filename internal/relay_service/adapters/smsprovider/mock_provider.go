package smsprovider

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// MockSMSProvider records messages instead of sending them. Used for local runs (SMS_PROVIDER=mock).
type MockSMSProvider struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []SendRequest
}

func NewMockSMSProvider(logger *slog.Logger) *MockSMSProvider {
	return &MockSMSProvider{logger: logger.With("provider", "mock")}
}

func (p *MockSMSProvider) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	p.mu.Lock()
	p.sent = append(p.sent, req)
	p.mu.Unlock()

	id := "MOCK" + uuid.NewString()
	p.logger.InfoContext(ctx, "MockSMSProvider: message recorded", "to", req.To, "body", req.Body, "provider_message_id", id)
	return &SendResponse{ProviderMessageID: id, Status: "queued", ProviderName: p.GetName()}, nil
}

// Sent returns a copy of every recorded message.
func (p *MockSMSProvider) Sent() []SendRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SendRequest, len(p.sent))
	copy(out, p.sent)
	return out
}

func (p *MockSMSProvider) GetName() string {
	return "mock"
}
