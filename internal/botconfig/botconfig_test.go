package botconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alroma79/data-flywheel-chatbot/internal/database"
	"github.com/Alroma79/data-flywheel-chatbot/internal/log"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	return NewStore(db, log.NewNop())
}

func TestCurrent_UnsavedReturnsEmptyProfile(t *testing.T) {
	store := newTestStore(t)

	p, err := store.Current(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultName, p.Name)
	assert.Empty(t, p.SystemPrompt)
}

func TestSaveAndCurrent_LatestWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, Profile{SystemPrompt: "first prompt", Temperature: 0.5})
	require.NoError(t, err)
	_, err = store.Save(ctx, Profile{SystemPrompt: "second prompt", Temperature: 1.0})
	require.NoError(t, err)

	p, err := store.Current(ctx, DefaultName)
	require.NoError(t, err)
	assert.Equal(t, "second prompt", p.SystemPrompt)
	assert.InDelta(t, 1.0, p.Temperature, 1e-6)
}

func TestSave_NamedProfilesAreIndependent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, Profile{Name: "support", SystemPrompt: "support prompt"})
	require.NoError(t, err)
	_, err = store.Save(ctx, Profile{SystemPrompt: "default prompt"})
	require.NoError(t, err)

	support, err := store.Current(ctx, "support")
	require.NoError(t, err)
	assert.Equal(t, "support prompt", support.SystemPrompt)

	def, err := store.Current(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "default prompt", def.SystemPrompt)
}

func TestSave_RejectsBadTemperature(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Save(context.Background(), Profile{Temperature: 3})
	assert.Error(t, err)
}
