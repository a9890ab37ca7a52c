package smsprovider

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTwilioSMSProvider_Send_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15551234567", r.PostForm.Get("To"))
		assert.Equal(t, "+15550000000", r.PostForm.Get("From"))
		assert.Equal(t, "on my way", r.PostForm.Get("Body"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued","error_code":null,"error_message":null}`))
	}))
	defer server.Close()

	p := NewTwilioSMSProvider(testLogger(), server.URL, "AC123", "secret", "+15550000000", server.Client())
	resp, err := p.Send(context.Background(), SendRequest{To: "+15551234567", Body: "on my way"})
	require.NoError(t, err)
	assert.Equal(t, "SM1", resp.ProviderMessageID)
	assert.Equal(t, "queued", resp.Status)
	assert.Equal(t, "twilio", resp.ProviderName)
}

func TestTwilioSMSProvider_Send_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"The 'To' number is not a valid phone number.","status":400}`))
	}))
	defer server.Close()

	p := NewTwilioSMSProvider(testLogger(), server.URL, "AC123", "secret", "+15550000000", server.Client())
	resp, err := p.Send(context.Background(), SendRequest{To: "+1555", Body: "hi"})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "21211")
}

func TestTwilioSMSProvider_Send_RequiresRecipient(t *testing.T) {
	p := NewTwilioSMSProvider(testLogger(), "", "AC123", "secret", "+15550000000", nil)
	_, err := p.Send(context.Background(), SendRequest{Body: "hi"})
	assert.Error(t, err)
}

func TestMockSMSProvider_RecordsMessages(t *testing.T) {
	p := NewMockSMSProvider(testLogger())
	resp, err := p.Send(context.Background(), SendRequest{To: "+15551234567", Body: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ProviderMessageID)
	require.Len(t, p.Sent(), 1)
	assert.Equal(t, "hello", p.Sent()[0].Body)
}
