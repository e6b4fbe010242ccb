// Package app wires the application together: database, stores, retrieval
// engine, generation client and orchestrator.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Alroma79/data-flywheel-chatbot/internal/botconfig"
	"github.com/Alroma79/data-flywheel-chatbot/internal/chat"
	"github.com/Alroma79/data-flywheel-chatbot/internal/config"
	"github.com/Alroma79/data-flywheel-chatbot/internal/database"
	"github.com/Alroma79/data-flywheel-chatbot/internal/feedback"
	"github.com/Alroma79/data-flywheel-chatbot/internal/knowledge"
	"github.com/Alroma79/data-flywheel-chatbot/internal/llm"
	"github.com/Alroma79/data-flywheel-chatbot/internal/session"
)

// App is the application container holding every wired component.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	DB           *sql.DB
	Knowledge    *knowledge.Store
	Engine       *knowledge.Engine
	Sessions     *session.Store
	Feedback     *feedback.Store
	Profiles     *botconfig.Store
	Orchestrator *chat.Orchestrator
}

// Setup opens the database, runs migrations and wires all components. The
// persisted assistant profile, when one exists, overrides the static
// defaults for system prompt and generation parameters.
func Setup(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	store, err := knowledge.NewStore(db, cfg.UploadsDir, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating knowledge store: %w", err)
	}
	chunker, err := knowledge.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating chunker: %w", err)
	}
	engine := knowledge.NewEngine(store, chunker, cfg.MaxResults, cfg.MaxContextChars, logger)

	sessions := session.NewStore(db, logger)
	profiles := botconfig.NewStore(db, logger)

	// Layer the persisted profile over static config.
	systemPrompt := cfg.SystemPrompt
	model := cfg.Model
	temperature := cfg.Temperature
	maxTokens := cfg.MaxTokens

	profile, err := profiles.Current(context.Background(), botconfig.DefaultName)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("loading assistant profile: %w", err)
	}
	if profile.SystemPrompt != "" {
		systemPrompt = profile.SystemPrompt
	}
	if profile.Model != "" {
		model = profile.Model
	}
	if profile.Temperature != 0 {
		temperature = profile.Temperature
	}
	if profile.MaxTokens != 0 {
		maxTokens = profile.MaxTokens
	}

	client := llm.NewClient(llm.Config{
		BaseURL:     cfg.APIBase,
		APIKey:      cfg.APIKey,
		Model:       model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})

	assembler := chat.NewAssembler(sessions, systemPrompt, cfg.MaxHistoryTurns)
	orchestrator := chat.NewOrchestrator(engine, assembler, sessions, client, cfg.MaxMessageLen, logger)

	return &App{
		Config:       cfg,
		Logger:       logger,
		DB:           db,
		Knowledge:    store,
		Engine:       engine,
		Sessions:     sessions,
		Feedback:     feedback.NewStore(db, logger),
		Profiles:     profiles,
		Orchestrator: orchestrator,
	}, nil
}

// Close releases held resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("closing database: %w", err)
		}
	}
	return nil
}
