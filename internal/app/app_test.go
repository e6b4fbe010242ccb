package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alroma79/data-flywheel-chatbot/internal/botconfig"
	"github.com/Alroma79/data-flywheel-chatbot/internal/config"
	"github.com/Alroma79/data-flywheel-chatbot/internal/database"
	"github.com/Alroma79/data-flywheel-chatbot/internal/log"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		APIBase:         "http://localhost:11434/v1",
		APIKey:          "test-key",
		Model:           "test-model",
		Temperature:     0.7,
		MaxTokens:       1024,
		ChunkSize:       config.DefaultChunkSize,
		ChunkOverlap:    config.DefaultChunkOverlap,
		MaxResults:      config.DefaultMaxResults,
		MaxContextChars: config.DefaultMaxContextChars,
		SystemPrompt:    config.DefaultSystemPrompt,
		MaxHistoryTurns: config.DefaultMaxHistoryTurns,
		MaxMessageLen:   config.DefaultMaxMessageLen,
		DatabasePath:    filepath.Join(dir, "app.db"),
		UploadsDir:      filepath.Join(dir, "uploads"),
		Addr:            ":8080",
	}
}

func TestSetup_WiresEverything(t *testing.T) {
	a, err := Setup(testConfig(t), log.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.NotNil(t, a.DB)
	assert.NotNil(t, a.Knowledge)
	assert.NotNil(t, a.Engine)
	assert.NotNil(t, a.Sessions)
	assert.NotNil(t, a.Feedback)
	assert.NotNil(t, a.Profiles)
	assert.NotNil(t, a.Orchestrator)

	// Migrations ran: a session can be created right away.
	sess, err := a.Sessions.Create(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
}

func TestSetup_AppliesPersistedProfile(t *testing.T) {
	cfg := testConfig(t)

	// Persist a profile before setup so it is picked up on wiring.
	db, err := database.Open(cfg.DatabasePath)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	profiles := botconfig.NewStore(db, log.NewNop())
	_, err = profiles.Save(context.Background(), botconfig.Profile{SystemPrompt: "persisted prompt"})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	a, err := Setup(cfg, log.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	current, err := a.Profiles.Current(context.Background(), botconfig.DefaultName)
	require.NoError(t, err)
	assert.Equal(t, "persisted prompt", current.SystemPrompt)
}
