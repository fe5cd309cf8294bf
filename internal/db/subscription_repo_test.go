package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"glowmart/internal/types"
)

func TestPushSubscriptionRepository_ListActive_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPushSubscriptionRepository(db)

	lastUsed := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	rows := newMockRows([][]any{
		{int64(1), "https://fcm.googleapis.com/send/abc", "auth1", "p256dh1", true, lastUsed},
		{int64(2), "https://updates.push.services.mozilla.com/xyz", "auth2", "p256dh2", true, nil},
	})

	db.On("Query", mock.Anything, sqlContains("WHERE is_active = true"), mock.Anything).
		Return(rows, nil)

	subs, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 2)

	assert.Equal(t, int64(1), subs[0].ID)
	assert.Equal(t, "https://fcm.googleapis.com/send/abc", subs[0].Endpoint)
	assert.Equal(t, "auth1", subs[0].Auth)
	assert.Equal(t, "p256dh1", subs[0].P256dh)
	require.NotNil(t, subs[0].LastUsedAt)
	assert.Equal(t, lastUsed, *subs[0].LastUsedAt)

	assert.Nil(t, subs[1].LastUsedAt)
	db.AssertExpectations(t)
}

func TestPushSubscriptionRepository_ListActive_Empty(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPushSubscriptionRepository(db)

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows([][]any{}), nil)

	subs, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestPushSubscriptionRepository_TouchLastUsed(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPushSubscriptionRepository(db)

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	db.On("Exec", mock.Anything, sqlContains("SET last_used_at = $2"), mock.Anything).
		Run(func(args mock.Arguments) {
			params := args.Get(2).([]any)
			assert.Equal(t, int64(5), params[0])
			assert.Equal(t, now, params[1])
		}).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.TouchLastUsed(context.Background(), 5, now)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestPushSubscriptionRepository_Deactivate(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPushSubscriptionRepository(db)

	db.On("Exec", mock.Anything, sqlContains("SET is_active = false"), mock.Anything).
		Run(func(args mock.Arguments) {
			params := args.Get(2).([]any)
			assert.Equal(t, int64(5), params[0])
		}).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.Deactivate(context.Background(), 5)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestPushSubscriptionRepository_Deactivate_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPushSubscriptionRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.Deactivate(context.Background(), 5)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
