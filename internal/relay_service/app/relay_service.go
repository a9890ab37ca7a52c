package app

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/noeltrans/dispatch_services/internal/platform/messagebroker"
	"github.com/noeltrans/dispatch_services/internal/relay_service/adapters/chat"
	"github.com/noeltrans/dispatch_services/internal/relay_service/adapters/smsprovider"
	"github.com/noeltrans/dispatch_services/internal/relay_service/domain"
)

// ChatClient is the part of the chat platform API the relay uses.
type ChatClient interface {
	PostMessage(ctx context.Context, msg chat.Message) (string, error)
	PostMessageAs(ctx context.Context, token string, msg chat.Message) (string, error)
	OpenDialog(ctx context.Context, token, triggerID string, dialog chat.Dialog) error
	ExchangeCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*chat.OAuthAccess, error)
}

// DirectoryClient resolves drivers in the external directory.
type DirectoryClient interface {
	LookupByPhone(ctx context.Context, carrierPhone string) (*domain.DriverRecord, error)
	SearchByFirstName(ctx context.Context, name string) iter.Seq2[domain.DriverRecord, error]
}

// Settings are the chat workspace values the relay needs.
type Settings struct {
	Channel      string // channel driver SMS are posted to
	ClientID     string
	ClientSecret string
	TeamID       string
	RedirectURI  string
}

// RelayService routes messages between the SMS carrier and the chat platform.
type RelayService struct {
	correlations domain.CorrelationRepository
	credentials  domain.CredentialRepository
	directory    DirectoryClient
	chat         ChatClient
	sms          smsprovider.Adapter
	broker       messagebroker.NATSClient
	states       *DialogStateCodec
	settings     Settings
	logger       *slog.Logger
	now          func() time.Time
}

// Deps groups the collaborators injected into NewRelayService.
type Deps struct {
	Correlations domain.CorrelationRepository
	Credentials  domain.CredentialRepository
	Directory    DirectoryClient
	Chat         ChatClient
	SMS          smsprovider.Adapter
	Broker       messagebroker.NATSClient // optional
	States       *DialogStateCodec
}

func NewRelayService(deps Deps, settings Settings, logger *slog.Logger) *RelayService {
	broker := deps.Broker
	if broker == nil {
		broker = messagebroker.NoopClient{}
	}
	if settings.Channel == "" {
		settings.Channel = "#dispatch"
	}
	return &RelayService{
		correlations: deps.Correlations,
		credentials:  deps.Credentials,
		directory:    deps.Directory,
		chat:         deps.Chat,
		sms:          deps.SMS,
		broker:       broker,
		states:       deps.States,
		settings:     settings,
		logger:       logger.With("component", "relay_service"),
		now:          time.Now,
	}
}

// userCredential loads the invoking user's token, mapping "never authorized" to ErrAuthRequired.
func (s *RelayService) userCredential(ctx context.Context, userID string) (*domain.UserCredential, error) {
	if userID == "" {
		return nil, domain.ErrAuthRequired
	}
	cred, err := s.credentials.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cred == nil || cred.AccessToken == "" {
		return nil, domain.ErrAuthRequired
	}
	return cred, nil
}
