package chat

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/slack-go/slack"
)

// ErrInvalidSignature wraps every reason a signed request is rejected:
// missing headers, a timestamp outside the replay window or a digest mismatch.
var ErrInvalidSignature = errors.New("slack: invalid request signature")

// VerifySignature checks the v0 request signing headers against body.
func VerifySignature(signingSecret string, header http.Header, body []byte) error {
	sv, err := slack.NewSecretsVerifier(header, signingSecret)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if _, err := sv.Write(body); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if err := sv.Ensure(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return nil
}
