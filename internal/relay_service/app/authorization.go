package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/noeltrans/dispatch_services/internal/relay_service/adapters/chat"
	"github.com/noeltrans/dispatch_services/internal/relay_service/domain"
)

// OAuthScopes are requested so users can post replies under their own name.
const OAuthScopes = "incoming-webhook chat:write:user"

// AuthorizeURL is where the browser is redirected to start the OAuth flow.
func (s *RelayService) AuthorizeURL() string {
	q := url.Values{}
	q.Set("client_id", s.settings.ClientID)
	if s.settings.TeamID != "" {
		q.Set("team", s.settings.TeamID)
	}
	if s.settings.RedirectURI != "" {
		q.Set("redirect_uri", s.settings.RedirectURI)
	}
	q.Set("scope", OAuthScopes)
	return chat.AuthorizeURL + "?" + q.Encode()
}

// CompleteAuthorization exchanges code for the user's token and stores it, replacing any earlier one.
func (s *RelayService) CompleteAuthorization(ctx context.Context, code string) (*domain.UserCredential, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code is required", domain.ErrInvalidInput)
	}

	access, err := s.chat.ExchangeCode(ctx, s.settings.ClientID, s.settings.ClientSecret, code, s.settings.RedirectURI)
	if err != nil {
		authorizationCounter.WithLabelValues("exchange_failed").Inc()
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	if access.UserID == "" || access.AccessToken == "" {
		authorizationCounter.WithLabelValues("exchange_failed").Inc()
		return nil, fmt.Errorf("exchanging authorization code: response missing user or token")
	}

	cred := &domain.UserCredential{UserID: access.UserID, AccessToken: access.AccessToken, UpdatedAt: s.now().UTC()}
	if err := s.credentials.Upsert(ctx, cred); err != nil {
		authorizationCounter.WithLabelValues("store_failed").Inc()
		return nil, fmt.Errorf("storing credential for %s: %w", access.UserID, err)
	}
	authorizationCounter.WithLabelValues("success").Inc()
	s.logger.InfoContext(ctx, "User authorized", "user_id", access.UserID, "team_id", access.TeamID, "scope", access.Scope)
	return cred, nil
}
