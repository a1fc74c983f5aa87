package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/itemcatalog/internal/domain"
	"github.com/mkrupp/itemcatalog/internal/repo/store/storetest"
	. "github.com/mkrupp/itemcatalog/internal/repo/user"
)

func TestSQLiteUserRepository_Create(t *testing.T) {
	t.Parallel()

	repo := NewSQLiteUserRepository(storetest.Open(t).DB())
	ctx := context.Background()

	alice := &domain.User{Username: "alice", Email: "Alice@X.com", PasswordHash: []byte("hash")}
	require.NoError(t, repo.Create(ctx, alice))
	assert.NotZero(t, alice.ID)
	assert.Equal(t, "alice@x.com", alice.Email)
	assert.Equal(t, domain.DefaultAvatar, alice.Avatar)

	tests := []struct {
		name    string
		user    *domain.User
		wantErr error
	}{
		{
			name:    "duplicate username",
			user:    &domain.User{Username: "alice", Email: "other@x.com", PasswordHash: []byte("hash")},
			wantErr: domain.ErrUsernameTaken,
		},
		{
			name:    "duplicate email differing in case",
			user:    &domain.User{Username: "alice2", Email: "ALICE@x.com", PasswordHash: []byte("hash")},
			wantErr: domain.ErrEmailTaken,
		},
		{
			name:    "distinct user",
			user:    &domain.User{Username: "bob", Email: "bob@x.com", PasswordHash: []byte("hash")},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Create(ctx, tt.user)
			if tt.wantErr == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSQLiteUserRepository_Get(t *testing.T) {
	t.Parallel()

	repo := NewSQLiteUserRepository(storetest.Open(t).DB())
	ctx := context.Background()

	alice := &domain.User{Username: "alice", Email: "alice@x.com", PasswordHash: []byte("hash")}
	require.NoError(t, repo.Create(ctx, alice))

	byID, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice, byID)

	byName, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byName.ID)

	byEmail, err := repo.GetByEmail(ctx, "ALICE@X.COM")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)

	_, err = repo.GetByUsername(ctx, "nobody")
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = repo.GetByID(ctx, 999)
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestSQLiteUserRepository_Update(t *testing.T) {
	t.Parallel()

	repo := NewSQLiteUserRepository(storetest.Open(t).DB())
	ctx := context.Background()

	alice := &domain.User{Username: "alice", Email: "alice@x.com", PasswordHash: []byte("hash")}
	bob := &domain.User{Username: "bob", Email: "bob@x.com", PasswordHash: []byte("hash")}
	require.NoError(t, repo.Create(ctx, alice))
	require.NoError(t, repo.Create(ctx, bob))

	alice.Username = "alicia"
	alice.Email = "Alicia@X.com"
	alice.Avatar = "abc.png"
	require.NoError(t, repo.Update(ctx, alice))

	got, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alicia", got.Username)
	assert.Equal(t, "alicia@x.com", got.Email)
	assert.Equal(t, "abc.png", got.Avatar)

	bob.Email = "alicia@x.com"
	require.ErrorIs(t, repo.Update(ctx, bob), domain.ErrEmailTaken)

	require.ErrorIs(t, repo.Update(ctx, &domain.User{ID: 999, Username: "x", Email: "x@x.com"}), domain.ErrUserNotFound)
}
