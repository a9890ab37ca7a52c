package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noeltrans/dispatch_services/internal/platform/secrets"
	"github.com/noeltrans/dispatch_services/internal/relay_service/domain"
	"github.com/noeltrans/dispatch_services/internal/relay_service/repository"
)

type PgCredentialRepository struct {
	db     repository.Querier
	sealer *secrets.Sealer
	logger *slog.Logger
}

// NewPgCredentialRepository stores access tokens sealed with sealer (which may be a pass-through).
func NewPgCredentialRepository(db repository.Querier, sealer *secrets.Sealer, logger *slog.Logger) *PgCredentialRepository {
	if sealer == nil {
		sealer = &secrets.Sealer{}
	}
	return &PgCredentialRepository{db: db, sealer: sealer, logger: logger.With("component", "credential_repository_pg")}
}

func (r *PgCredentialRepository) FindByUserID(ctx context.Context, userID string) (*domain.UserCredential, error) {
	query := `SELECT user_id, access_token, updated_at FROM user_credentials WHERE user_id = $1`

	var cred domain.UserCredential
	var stored string
	err := r.db.QueryRow(ctx, query, userID).Scan(&cred.UserID, &stored, &cred.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.InfoContext(ctx, "No credential stored for user", "user_id", userID)
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Error querying user credential", "user_id", userID, "error", err)
		return nil, fmt.Errorf("querying user credential: %w", err)
	}

	cred.AccessToken, err = r.sealer.Open(stored)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to unseal access token", "user_id", userID, "error", err)
		return nil, fmt.Errorf("unsealing access token: %w", err)
	}
	return &cred, nil
}

// Upsert replaces any previous token for the user, so repeat authorizations never leave duplicates.
func (r *PgCredentialRepository) Upsert(ctx context.Context, cred *domain.UserCredential) error {
	sealed, err := r.sealer.Seal(cred.AccessToken)
	if err != nil {
		return fmt.Errorf("sealing access token: %w", err)
	}
	if cred.UpdatedAt.IsZero() {
		cred.UpdatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO user_credentials (user_id, access_token, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET access_token = EXCLUDED.access_token, updated_at = EXCLUDED.updated_at`

	if _, err := r.db.Exec(ctx, query, cred.UserID, sealed, cred.UpdatedAt); err != nil {
		r.logger.ErrorContext(ctx, "Error upserting user credential", "user_id", cred.UserID, "error", err)
		return fmt.Errorf("upserting user credential: %w", err)
	}
	r.logger.InfoContext(ctx, "User credential stored", "user_id", cred.UserID, "sealed", r.sealer.Enabled())
	return nil
}
