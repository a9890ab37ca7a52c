package postgres

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noeltrans/dispatch_services/internal/platform/secrets"
	"github.com/noeltrans/dispatch_services/internal/relay_service/domain"
)

// sealedTokenArg matches any argument that was sealed by secrets.Sealer.
type sealedTokenArg struct{}

func (sealedTokenArg) Match(v interface{}) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, "sb1:")
}

func newTestSealer(t *testing.T) *secrets.Sealer {
	t.Helper()
	s, err := secrets.NewSealer(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", 32))))
	require.NoError(t, err)
	return s
}

func TestPgCredentialRepository_Upsert(t *testing.T) {
	t.Run("SealsToken", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewPgCredentialRepository(mockPool, newTestSealer(t), testLogger())

		mockPool.ExpectExec(`INSERT INTO user_credentials \(user_id, access_token, updated_at\)`).
			WithArgs("U123", sealedTokenArg{}, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = repo.Upsert(context.Background(), &domain.UserCredential{UserID: "U123", AccessToken: "xoxp-1"})
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("PlainWithoutKey", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewPgCredentialRepository(mockPool, nil, testLogger())

		mockPool.ExpectExec(`ON CONFLICT \(user_id\) DO UPDATE`).
			WithArgs("U123", "xoxp-1", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Upsert(context.Background(), &domain.UserCredential{UserID: "U123", AccessToken: "xoxp-1"}))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgCredentialRepository_FindByUserID(t *testing.T) {
	t.Run("UnsealsToken", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		sealer := newTestSealer(t)
		repo := NewPgCredentialRepository(mockPool, sealer, testLogger())

		sealed, err := sealer.Seal("xoxp-1")
		require.NoError(t, err)
		rows := mockPool.NewRows([]string{"user_id", "access_token", "updated_at"}).
			AddRow("U123", sealed, time.Now().UTC())
		mockPool.ExpectQuery(`SELECT user_id, access_token, updated_at FROM user_credentials WHERE user_id = \$1`).
			WithArgs("U123").
			WillReturnRows(rows)

		cred, err := repo.FindByUserID(context.Background(), "U123")
		require.NoError(t, err)
		require.NotNil(t, cred)
		assert.Equal(t, "xoxp-1", cred.AccessToken)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("MissingIsNil", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewPgCredentialRepository(mockPool, nil, testLogger())

		mockPool.ExpectQuery(`FROM user_credentials WHERE user_id = \$1`).
			WithArgs("U404").
			WillReturnRows(mockPool.NewRows([]string{"user_id", "access_token", "updated_at"}))

		cred, err := repo.FindByUserID(context.Background(), "U404")
		assert.NoError(t, err)
		assert.Nil(t, cred)
	})
}
