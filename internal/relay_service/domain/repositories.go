package domain

import "context"

// CorrelationRepository persists phone number <-> thread mappings.
// Find methods return (nil, nil) when no record exists.
type CorrelationRepository interface {
	FindByThread(ctx context.Context, threadID string) (*CorrelationRecord, error)
	FindByPhone(ctx context.Context, phoneNumber string) (*CorrelationRecord, error)
	// Create is an exclusive insert: it returns ErrDuplicateKey when the phone
	// number (or thread) is already mapped.
	Create(ctx context.Context, phoneNumber, threadID string) (*CorrelationRecord, error)
}

// CredentialRepository persists chat user access tokens.
type CredentialRepository interface {
	// FindByUserID returns (nil, nil) when the user never authorized.
	FindByUserID(ctx context.Context, userID string) (*UserCredential, error)
	// Upsert stores the token, replacing any earlier one for the same user.
	Upsert(ctx context.Context, cred *UserCredential) error
}
