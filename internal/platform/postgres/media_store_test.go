package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyloom-api/internal/domain"
	"github.com/storyloom/storyloom-api/internal/store"
)

func newMockMediaStore(t *testing.T) (*MediaStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewMediaStore(db), mock
}

func TestCommitSessionWinnerAndLoser(t *testing.T) {
	mediaStore, mock := newMockMediaStore(t)
	sessionID := uuid.New()
	ownerID := uuid.New()

	// First commit matches the pending row: one row affected.
	mock.ExpectExec(`UPDATE media`).
		WithArgs(domain.OwnerTypeArtifact, ownerID, sqlmock.AnyArg(), sessionID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Second commit finds nothing pending: zero rows, no error.
	mock.ExpectExec(`UPDATE media`).
		WithArgs(domain.OwnerTypeArtifact, ownerID, sqlmock.AnyArg(), sessionID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()

	committed, err := mediaStore.CommitSession(ctx, sessionID, domain.OwnerTypeArtifact, ownerID)
	require.NoError(t, err)
	assert.True(t, committed)

	committed, err = mediaStore.CommitSession(ctx, sessionID, domain.OwnerTypeArtifact, ownerID)
	require.NoError(t, err)
	assert.False(t, committed, "losing commit must be a no-op, not an error")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitSessionGuardsOnPendingAndExpiry(t *testing.T) {
	mediaStore, mock := newMockMediaStore(t)
	sessionID := uuid.New()

	// The conditional update is the whole race-resolution mechanism, so
	// pin the guard clauses in the statement itself.
	mock.ExpectExec(`status = 'pending'[\s\S]*expires_at > \$3`).
		WithArgs(domain.OwnerTypeInput, sqlmock.AnyArg(), sqlmock.AnyArg(), sessionID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	committed, err := mediaStore.CommitSession(
		context.Background(), sessionID, domain.OwnerTypeInput, uuid.New())
	require.NoError(t, err)
	assert.True(t, committed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpirePendingIsIdempotent(t *testing.T) {
	mediaStore, mock := newMockMediaStore(t)

	mock.ExpectExec(`UPDATE media`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`UPDATE media`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	now := time.Now().UTC()

	expired, err := mediaStore.ExpirePending(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 3, expired)

	// Second pass over the same state finds nothing and succeeds.
	expired, err = mediaStore.ExpirePending(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 0, expired)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsInvalidMedia(t *testing.T) {
	mediaStore, _ := newMockMediaStore(t)

	invalid := &domain.Media{
		ID:        uuid.New(),
		AccountID: uuid.New(),
		MediaType: domain.MediaTypeImage,
		Status:    domain.MediaStatusPending,
		// Pending without a session violates the lifecycle invariant.
	}

	err := mediaStore.Create(context.Background(), invalid)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestSetContentKeyNotFound(t *testing.T) {
	mediaStore, mock := newMockMediaStore(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE media`).
		WithArgs(id, "audio/abc.mp3", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := mediaStore.SetContentKey(context.Background(), id, "audio/abc.mp3", nil)
	assert.ErrorIs(t, err, store.ErrMediaNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
