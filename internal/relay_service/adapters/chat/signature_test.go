package chat

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func signedHeader(secret string, ts time.Time, body []byte) http.Header {
	stamp := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:", stamp)
	mac.Write(body)

	h := http.Header{}
	h.Set("X-Slack-Request-Timestamp", stamp)
	h.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return h
}

func TestVerifySignature(t *testing.T) {
	now := time.Now()
	body := []byte("token=x&text=Jordan")

	assert.NoError(t, VerifySignature("s3cret", signedHeader("s3cret", now, body), body))
	assert.ErrorIs(t, VerifySignature("other", signedHeader("s3cret", now, body), body), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("s3cret", signedHeader("s3cret", now, body), []byte("tampered")), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("s3cret", signedHeader("s3cret", now.Add(-10*time.Minute), body), body), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("s3cret", http.Header{}, body), ErrInvalidSignature)
}
