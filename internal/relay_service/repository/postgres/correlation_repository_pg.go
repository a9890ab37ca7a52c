package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noeltrans/dispatch_services/internal/relay_service/domain"
	"github.com/noeltrans/dispatch_services/internal/relay_service/repository"
)

type PgCorrelationRepository struct {
	db     repository.Querier
	logger *slog.Logger
}

func NewPgCorrelationRepository(db repository.Querier, logger *slog.Logger) *PgCorrelationRepository {
	return &PgCorrelationRepository{db: db, logger: logger.With("component", "correlation_repository_pg")}
}

const selectConversation = `SELECT id, phone_number, thread_ts, created_at FROM conversations`

// FindByThread returns the record for a chat thread, or (nil, nil).
func (r *PgCorrelationRepository) FindByThread(ctx context.Context, threadID string) (*domain.CorrelationRecord, error) {
	return r.findOne(ctx, selectConversation+` WHERE thread_ts = $1 LIMIT 1`, "thread_ts", threadID)
}

// FindByPhone returns the record for a phone number, or (nil, nil).
func (r *PgCorrelationRepository) FindByPhone(ctx context.Context, phoneNumber string) (*domain.CorrelationRecord, error) {
	return r.findOne(ctx, selectConversation+` WHERE phone_number = $1 LIMIT 1`, "phone_number", phoneNumber)
}

func (r *PgCorrelationRepository) findOne(ctx context.Context, query, key, value string) (*domain.CorrelationRecord, error) {
	var rec domain.CorrelationRecord
	err := r.db.QueryRow(ctx, query, value).Scan(&rec.ID, &rec.PhoneNumber, &rec.ThreadID, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.DebugContext(ctx, "Correlation record not found", key, value)
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Error querying correlation record", key, value, "error", err)
		return nil, fmt.Errorf("querying conversation by %s: %w", key, err)
	}
	return &rec, nil
}

// Create inserts a new record. The insert is exclusive: when either the phone number
// or the thread is already mapped nothing is written and domain.ErrDuplicateKey is returned.
func (r *PgCorrelationRepository) Create(ctx context.Context, phoneNumber, threadID string) (*domain.CorrelationRecord, error) {
	rec := domain.NewCorrelationRecord(phoneNumber, threadID)
	query := `
		INSERT INTO conversations (id, phone_number, thread_ts, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
		RETURNING id`

	var insertedID = rec.ID
	err := r.db.QueryRow(ctx, query, rec.ID, rec.PhoneNumber, rec.ThreadID, rec.CreatedAt).Scan(&insertedID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == "23505") {
			r.logger.WarnContext(ctx, "Correlation record already exists", "phone_number", phoneNumber, "thread_ts", threadID)
			return nil, domain.ErrDuplicateKey
		}
		r.logger.ErrorContext(ctx, "Error inserting correlation record", "phone_number", phoneNumber, "thread_ts", threadID, "error", err)
		return nil, fmt.Errorf("inserting conversation: %w", err)
	}

	r.logger.InfoContext(ctx, "Correlation record created", "id", rec.ID, "phone_number", phoneNumber, "thread_ts", threadID)
	return rec, nil
}
