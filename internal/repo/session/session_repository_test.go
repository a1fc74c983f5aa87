package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/itemcatalog/internal/domain"
	. "github.com/mkrupp/itemcatalog/internal/repo/session"
	"github.com/mkrupp/itemcatalog/internal/repo/store/storetest"
	"github.com/mkrupp/itemcatalog/internal/repo/user"
)

func newSession(userID int64, ttl time.Duration) *domain.Session {
	now := time.Now()

	return &domain.Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		Persistent: true,
		CreatedAt:  now.Unix(),
		ExpiresAt:  now.Add(ttl).Unix(),
	}
}

func testRepository(t *testing.T, repo Repository, userID int64) {
	t.Helper()

	ctx := context.Background()

	session := newSession(userID, time.Hour)
	require.NoError(t, repo.Create(ctx, session))

	got, err := repo.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session, got)

	_, err = repo.Get(ctx, uuid.NewString())
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, repo.Delete(ctx, session.ID))
	require.NoError(t, repo.Delete(ctx, session.ID))

	_, err = repo.Get(ctx, session.ID)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSQLiteSessionRepository(t *testing.T) {
	t.Parallel()

	s := storetest.Open(t)

	alice := &domain.User{Username: "alice", Email: "alice@x.com", PasswordHash: []byte("x")}
	require.NoError(t, user.NewSQLiteUserRepository(s.DB()).Create(context.Background(), alice))

	repo, err := NewRepository(context.Background(), Config{Backend: "sqlite"}, s)
	require.NoError(t, err)

	testRepository(t, repo, alice.ID)

	expired := newSession(alice.ID, -time.Minute)
	require.NoError(t, repo.Create(context.Background(), expired))

	_, err = repo.Get(context.Background(), expired.ID)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRedisSessionRepository(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	repo, err := NewRepository(context.Background(), Config{
		Backend: "redis",
		Redis:   RedisConfig{Addr: mr.Addr(), KeyPrefix: "test:session:"},
	}, nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = repo.Close() })

	testRepository(t, repo, 1)

	session := newSession(1, time.Minute)
	require.NoError(t, repo.Create(context.Background(), session))
	assert.True(t, mr.Exists("test:session:"+session.ID))

	mr.FastForward(2 * time.Minute)

	_, err = repo.Get(context.Background(), session.ID)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.ErrorIs(t, repo.Create(context.Background(), newSession(1, -time.Minute)), domain.ErrSessionNotFound)
}

func TestNewRepository_UnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := NewRepository(context.Background(), Config{Backend: "memcached"}, nil)
	require.ErrorIs(t, err, ErrUnknownBackend)
}
