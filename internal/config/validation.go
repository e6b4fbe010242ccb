package config

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for configuration validation.
// Check with errors.Is(); Load() wraps them with context.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the LLM API key is not set.
	ErrMissingAPIKey = errors.New("missing API key (set OPENAI_API_KEY)")

	// ErrInvalidChunking indicates chunk size/overlap values are unusable.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidRetrievalCaps indicates result or character caps are out of range.
	ErrInvalidRetrievalCaps = errors.New("invalid retrieval caps")

	// ErrInvalidHistoryTurns indicates the history window is out of range.
	ErrInvalidHistoryTurns = errors.New("invalid history window")

	// ErrInvalidMessageLen indicates the message length bound is out of range.
	ErrInvalidMessageLen = errors.New("invalid message length bound")

	// ErrInvalidAddr indicates the listen address is empty.
	ErrInvalidAddr = errors.New("invalid listen address")

	// ErrInvalidAPIBase indicates the LLM endpoint URL is unusable.
	ErrInvalidAPIBase = errors.New("invalid api_base")
)

// Validate checks the configuration, fail-fast, with clear error messages.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.APIBase == "" || (!strings.HasPrefix(c.APIBase, "http://") && !strings.HasPrefix(c.APIBase, "https://")) {
		return fmt.Errorf("%w: %q", ErrInvalidAPIBase, c.APIBase)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (must be in [0, 2])", ErrInvalidTemperature, c.Temperature)
	}

	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size %d (must be >= 1)", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap %d must be in [0, chunk_size)", ErrInvalidChunking, c.ChunkOverlap)
	}
	if c.MaxResults < 1 || c.MaxContextChars < 1 {
		return fmt.Errorf("%w: max_results %d, max_context_chars %d (must be >= 1)",
			ErrInvalidRetrievalCaps, c.MaxResults, c.MaxContextChars)
	}

	if c.MaxHistoryTurns < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidHistoryTurns, c.MaxHistoryTurns)
	}
	if c.MaxMessageLen < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidMessageLen, c.MaxMessageLen)
	}

	if c.Addr == "" {
		return ErrInvalidAddr
	}

	return nil
}

// ValidateServe performs the additional checks required to run the HTTP
// server and talk to a real generation backend.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}
