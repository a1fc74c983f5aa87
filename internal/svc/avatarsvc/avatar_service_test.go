package avatarsvc_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/itemcatalog/internal/domain"
	"github.com/mkrupp/itemcatalog/internal/repo/store"
	"github.com/mkrupp/itemcatalog/internal/repo/store/storetest"
	"github.com/mkrupp/itemcatalog/internal/repo/user"

	. "github.com/mkrupp/itemcatalog/internal/svc/avatarsvc"
)

type mockRepository struct {
	blobs map[string][]byte
	m     *sync.Mutex
}

func newMockRepo() *mockRepository {
	return &mockRepository{
		blobs: make(map[string][]byte),
		m:     &sync.Mutex{},
	}
}

func (m *mockRepository) Exists(_ context.Context, name string) bool {
	m.m.Lock()
	defer m.m.Unlock()

	_, exists := m.blobs[name]

	return exists
}

func (m *mockRepository) Store(_ context.Context, blob *domain.Blob) error {
	m.m.Lock()
	defer m.m.Unlock()

	m.blobs[blob.Name] = blob.Body

	return nil
}

func (m *mockRepository) Fetch(_ context.Context, name string) (*domain.Blob, error) {
	m.m.Lock()
	defer m.m.Unlock()

	data, exists := m.blobs[name]
	if !exists {
		return nil, fmt.Errorf("open: %w", os.ErrNotExist)
	}

	return domain.NewBlob(name, data), nil
}

func (m *mockRepository) Delete(_ context.Context, name string) error {
	m.m.Lock()
	defer m.m.Unlock()

	if _, exists := m.blobs[name]; !exists {
		return fmt.Errorf("remove: %w", os.ErrNotExist)
	}

	delete(m.blobs, name)

	return nil
}

func pngImage(t *testing.T, width, height int) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))

	return buf.Bytes()
}

// pngHeader returns a grayscale PNG that declares width x height pixels but
// carries no image data. Only its header can be decoded.
func pngHeader(width, height uint32) []byte {
	var buf bytes.Buffer

	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := make([]byte, 4+13)
	copy(chunk, "IHDR")
	binary.BigEndian.PutUint32(chunk[4:], width)
	binary.BigEndian.PutUint32(chunk[8:], height)
	chunk[12] = 8 // bit depth, color type 0 (gray)

	_ = binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))

	return buf.Bytes()
}

func testConfig() AvatarConfig {
	return AvatarConfig{
		MaxSize:      1 << 20,
		Width:        64,
		Interpolator: "catmullrom",
		FetchTimeout: time.Second,
	}
}

type testEnv struct {
	svc   *AvatarService
	repo  *mockRepository
	users user.Repository
}

func setupTestService(t *testing.T) testEnv {
	t.Helper()

	db := storetest.Open(t)
	repo := newMockRepo()

	svc, err := NewAvatarService(context.Background(), repo, db, user.SQLiteUserRepositoryFactory, nil, testConfig())
	require.NoError(t, err)

	return testEnv{svc: svc, repo: repo, users: user.NewSQLiteUserRepository(db.DB())}
}

func TestNewAvatarService_CreatesDefault(t *testing.T) {
	t.Parallel()

	env := setupTestService(t)

	blob, mimeType, err := env.svc.Fetch(context.Background(), domain.DefaultAvatar)
	require.NoError(t, err)
	assert.Equal(t, MIMETypeJPEG, mimeType)
	assert.True(t, bytes.HasPrefix(blob.Body, []byte("\xFF\xD8\xFF")))
}

func TestNewAvatarService_UnknownInterpolator(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Interpolator = "bogus"

	_, err := NewAvatarService(context.Background(), newMockRepo(), storetest.Open(t), user.SQLiteUserRepositoryFactory, nil, cfg)
	require.ErrorIs(t, err, ErrUnknownInterpolator)
}

func TestGenerateName(t *testing.T) {
	t.Parallel()

	first, err := GenerateName("Me.PNG")
	require.NoError(t, err)
	assert.Len(t, first, 100+len(".png"))
	assert.Regexp(t, `^[0-9a-f]{100}\.png$`, first)

	second, err := GenerateName("me.png")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestAvatarService_SaveUpload(t *testing.T) {
	t.Parallel()

	env := setupTestService(t)

	tests := []struct {
		name     string
		filename string
		data     []byte
		wantErr  error
	}{
		{name: "accepts png", filename: "me.png", data: pngImage(t, 16, 16)},
		{name: "rejects gif extension", filename: "me.gif", data: pngImage(t, 16, 16), wantErr: domain.ErrImageTypeNotSupported},
		{name: "rejects mismatched content", filename: "me.jpg", data: pngImage(t, 16, 16), wantErr: domain.ErrImageTypeMismatch},
		{name: "rejects oversized", filename: "me.png", data: make([]byte, 2<<20), wantErr: domain.ErrImageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, err := env.svc.SaveUpload(context.Background(), tt.filename, tt.data)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.True(t, env.repo.Exists(context.Background(), name))
		})
	}
}

func TestAvatarService_SaveUpload_Shrinks(t *testing.T) {
	t.Parallel()

	env := setupTestService(t)

	name, err := env.svc.SaveUpload(context.Background(), "wide.png", pngImage(t, 256, 128))
	require.NoError(t, err)

	blob, _, err := env.svc.Fetch(context.Background(), name)
	require.NoError(t, err)

	config, err := png.DecodeConfig(bytes.NewReader(blob.Body))
	require.NoError(t, err)
	assert.Equal(t, 64, config.Width)
	assert.Equal(t, 32, config.Height)
}

func TestAvatarService_SaveUpload_PixelLimit(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxPixels = 32 * 32

	repo := newMockRepo()
	svc, err := NewAvatarService(context.Background(), repo, storetest.Open(t), user.SQLiteUserRepositoryFactory, nil, cfg)
	require.NoError(t, err)

	_, err = svc.SaveUpload(context.Background(), "big.png", pngImage(t, 64, 64))
	require.ErrorIs(t, err, domain.ErrImageTooLarge)
	assert.Len(t, repo.blobs, 1, "only the default avatar is stored")

	_, err = svc.SaveUpload(context.Background(), "small.png", pngImage(t, 32, 32))
	require.NoError(t, err)
}

func TestAvatarService_SaveUpload_RejectsHugeDimensions(t *testing.T) {
	t.Parallel()

	env := setupTestService(t)

	// a few bytes declaring 20000x20000 pixels must be refused before decoding
	bomb := pngHeader(20000, 20000)
	require.Less(t, len(bomb), 64)

	_, err := env.svc.SaveUpload(context.Background(), "bomb.png", bomb)
	require.ErrorIs(t, err, domain.ErrImageTooLarge)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bomb)
	}))
	t.Cleanup(server.Close)

	_, err = env.svc.SaveFromURL(context.Background(), server.URL+"/photo")
	require.ErrorIs(t, err, domain.ErrImageTooLarge)

	_, err = env.svc.SaveUpload(context.Background(), "broken.png", pngHeader(0, 0))
	require.ErrorIs(t, err, domain.ErrImageTypeMismatch)
}

func TestAvatarService_SaveFromURL(t *testing.T) {
	t.Parallel()

	env := setupTestService(t)
	picture := pngImage(t, 8, 8)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/photo" {
			http.NotFound(w, r)

			return
		}

		_, _ = w.Write(picture)
	}))
	t.Cleanup(server.Close)

	name, err := env.svc.SaveFromURL(context.Background(), server.URL+"/photo")
	require.NoError(t, err)
	assert.Regexp(t, `\.png$`, name)
	assert.True(t, env.repo.Exists(context.Background(), name))

	_, err = env.svc.SaveFromURL(context.Background(), server.URL+"/missing")
	require.ErrorIs(t, err, domain.ErrImageFetch)

	_, err = env.svc.SaveFromURL(context.Background(), "file:///etc/passwd")
	require.ErrorIs(t, err, domain.ErrImageFetch)
}

func TestAvatarService_Delete(t *testing.T) {
	t.Parallel()

	env := setupTestService(t)
	ctx := context.Background()

	name, err := env.svc.SaveUpload(ctx, "me.png", pngImage(t, 8, 8))
	require.NoError(t, err)

	//nolint:exhaustruct
	alice := &domain.User{Username: "alice", Email: "alice@x.com", PasswordHash: []byte("hash"), Avatar: name}
	require.NoError(t, env.users.Create(ctx, alice))

	deleted, err := env.svc.Delete(ctx, alice, true)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, domain.DefaultAvatar, alice.Avatar)
	assert.False(t, env.repo.Exists(ctx, name))

	stored, err := env.users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAvatar, stored.Avatar)

	deleted, err = env.svc.Delete(ctx, alice, true)
	require.NoError(t, err)
	assert.False(t, deleted, "default avatar is never deleted")
	assert.True(t, env.repo.Exists(ctx, domain.DefaultAvatar))
}

func TestAvatarService_Delete_MissingFile(t *testing.T) {
	t.Parallel()

	env := setupTestService(t)

	//nolint:exhaustruct
	bob := &domain.User{ID: 1, Username: "bob", Avatar: "gone.png"}

	deleted, err := env.svc.Delete(context.Background(), bob, true)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, "gone.png", bob.Avatar)
}

func TestAvatarService_Remove(t *testing.T) {
	t.Parallel()

	env := setupTestService(t)
	ctx := context.Background()

	name, err := env.svc.SaveUpload(ctx, "me.png", pngImage(t, 8, 8))
	require.NoError(t, err)

	require.NoError(t, env.svc.Remove(ctx, name))
	assert.False(t, env.repo.Exists(ctx, name))

	require.NoError(t, env.svc.Remove(ctx, name), "removing a missing file is a no-op")
	require.NoError(t, env.svc.Remove(ctx, domain.DefaultAvatar))
	assert.True(t, env.repo.Exists(ctx, domain.DefaultAvatar))

	_, _, err = env.svc.Fetch(ctx, name)
	require.ErrorIs(t, err, domain.ErrAvatarNotFound)
}

func TestAvatarService_Delete_KeepsFileWhenCommitFails(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	repo := newMockRepo()
	svc, err := NewAvatarService(context.Background(), repo, store.New(sqlx.NewDb(db, "sqlite")),
		user.SQLiteUserRepositoryFactory, nil, testConfig())
	require.NoError(t, err)

	name, err := svc.SaveUpload(context.Background(), "me.png", pngImage(t, 8, 8))
	require.NoError(t, err)

	errCommit := errors.New("disk full")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errCommit)

	//nolint:exhaustruct
	alice := &domain.User{ID: 7, Username: "alice", Email: "alice@x.com", Avatar: name}

	deleted, err := svc.Delete(context.Background(), alice, true)
	require.ErrorIs(t, err, errCommit)
	assert.False(t, deleted)
	assert.Equal(t, name, alice.Avatar)
	assert.True(t, repo.Exists(context.Background(), name), "the file still referenced by the user is kept")
	require.NoError(t, mock.ExpectationsWereMet())
}
