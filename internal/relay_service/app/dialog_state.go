package app

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/noeltrans/dispatch_services/internal/relay_service/domain"
)

const dialogStateIssuer = "dispatch-relay"

// DialogState is carried through a reply dialog so the submission knows where to send the SMS
// and which thread gets the confirmation.
type DialogState struct {
	ThreadID    string
	PhoneNumber string
	ChannelID   string
}

type dialogStateClaims struct {
	Thread  string `json:"thr"`
	Phone   string `json:"phn"`
	Channel string `json:"chn,omitempty"`
	jwt.RegisteredClaims
}

// DialogStateCodec signs dialog state as a short-lived HS256 token.
type DialogStateCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewDialogStateCodec(secret string, ttl time.Duration) *DialogStateCodec {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &DialogStateCodec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (c *DialogStateCodec) Encode(state DialogState) (string, error) {
	now := c.now()
	claims := dialogStateClaims{
		Thread:  state.ThreadID,
		Phone:   state.PhoneNumber,
		Channel: state.ChannelID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    dialogStateIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing dialog state: %w", err)
	}
	return signed, nil
}

func (c *DialogStateCodec) Decode(token string) (DialogState, error) {
	var claims dialogStateClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(dialogStateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return DialogState{}, fmt.Errorf("%w: %v", domain.ErrInvalidState, err)
	}
	if claims.Thread == "" || claims.Phone == "" {
		return DialogState{}, fmt.Errorf("%w: missing thread or phone", domain.ErrInvalidState)
	}
	return DialogState{ThreadID: claims.Thread, PhoneNumber: claims.Phone, ChannelID: claims.Channel}, nil
}
