package knowledge

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alroma79/data-flywheel-chatbot/internal/database"
	"github.com/Alroma79/data-flywheel-chatbot/internal/log"
)

func newTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))

	store, err := NewStore(db, t.TempDir(), log.NewNop())
	require.NoError(t, err)
	return store, db
}

func TestStore_PutAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	f, dup, err := store.Put(ctx, []byte("hello knowledge"), "notes.txt", "text/plain")
	require.NoError(t, err)
	assert.False(t, dup)
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, "notes.txt", f.Filename)
	assert.Equal(t, int64(15), f.Size)
	assert.Len(t, f.Fingerprint, 64)

	got, err := store.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)
	assert.Equal(t, f.Fingerprint, got.Fingerprint)
}

func TestStore_PutDuplicateIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, dup, err := store.Put(ctx, []byte("same bytes"), "a.txt", "text/plain")
	require.NoError(t, err)
	require.False(t, dup)

	// Same content under a different name is still a duplicate.
	second, dup, err := store.Put(ctx, []byte("same bytes"), "b.txt", "text/plain")
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, first.ID, second.ID)

	files, err := store.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestStore_Bytes(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	raw := []byte("round trip content")
	f, _, err := store.Put(ctx, raw, "trip.txt", "text/plain")
	require.NoError(t, err)

	got, err := store.Bytes(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	f, _, err := store.Put(ctx, []byte("to delete"), "gone.txt", "text/plain")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, f.ID))

	_, err = store.Get(ctx, f.ID)
	assert.ErrorIs(t, err, ErrFileNotFound)

	files, err := store.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)

	// Deleting again reports not found.
	assert.ErrorIs(t, store.Delete(ctx, f.ID), ErrFileNotFound)
}

func TestStore_ReuploadAfterDeleteRevives(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	f, _, err := store.Put(ctx, []byte("phoenix"), "p.txt", "text/plain")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, f.ID))

	revived, dup, err := store.Put(ctx, []byte("phoenix"), "p.txt", "text/plain")
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, f.ID, revived.ID)

	files, err := store.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestStore_PutRemovesFileWhenInsertFails(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		`CREATE TRIGGER deny_inserts BEFORE INSERT ON knowledge_files
		 BEGIN SELECT RAISE(ABORT, 'insert rejected'); END`)
	require.NoError(t, err)

	_, _, err = store.Put(ctx, []byte("doomed content"), "doomed.txt", "text/plain")
	require.Error(t, err)

	// No record, no bytes: the uploads directory must stay empty.
	entries, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_GetUnknown(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Get(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain.txt", "plain.txt"},
		{"../../etc/passwd", "passwd"},
		{"dir/evil.md", "evil.md"},
		{"", "upload"},
		{"  spaced.pdf  ", "spaced.pdf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), "input %q", tt.in)
	}
}
