package app

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/noeltrans/dispatch_services/internal/relay_service/adapters/chat"
	"github.com/noeltrans/dispatch_services/internal/relay_service/domain"
)

func TestAuthorizeURL(t *testing.T) {
	h := newHarness()

	u, err := url.Parse(h.svc.AuthorizeURL())
	require.NoError(t, err)
	assert.Equal(t, "slack.com", u.Host)
	assert.Equal(t, "/oauth/authorize", u.Path)
	q := u.Query()
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "T1", q.Get("team"))
	assert.Equal(t, "https://relay.example.com/auth", q.Get("redirect_uri"))
	assert.Equal(t, OAuthScopes, q.Get("scope"))
}

func TestCompleteAuthorization_StoresToken(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.chat.On("ExchangeCode", ctx, "cid", "csecret", "code-1", "https://relay.example.com/auth").
		Return(&chat.OAuthAccess{UserID: "U1", AccessToken: "xoxp-1", TeamID: "T1"}, nil).Once()
	h.credentials.On("Upsert", ctx, mock.MatchedBy(func(c *domain.UserCredential) bool {
		return c.UserID == "U1" && c.AccessToken == "xoxp-1"
	})).Return(nil).Once()

	cred, err := h.svc.CompleteAuthorization(ctx, "code-1")
	require.NoError(t, err)
	assert.Equal(t, "U1", cred.UserID)
	h.assertExpectations(t)
}

func TestCompleteAuthorization_Failures(t *testing.T) {
	t.Run("missing code", func(t *testing.T) {
		h := newHarness()
		_, err := h.svc.CompleteAuthorization(context.Background(), "")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("exchange rejected", func(t *testing.T) {
		h := newHarness()
		h.chat.On("ExchangeCode", mock.Anything, mock.Anything, mock.Anything, "bad", mock.Anything).
			Return(nil, errors.New("invalid_code")).Once()

		_, err := h.svc.CompleteAuthorization(context.Background(), "bad")
		require.Error(t, err)
		h.credentials.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("store failure", func(t *testing.T) {
		h := newHarness()
		h.chat.On("ExchangeCode", mock.Anything, mock.Anything, mock.Anything, "code-1", mock.Anything).
			Return(&chat.OAuthAccess{UserID: "U1", AccessToken: "xoxp-1"}, nil).Once()
		h.credentials.On("Upsert", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

		_, err := h.svc.CompleteAuthorization(context.Background(), "code-1")
		require.Error(t, err)
	})
}
