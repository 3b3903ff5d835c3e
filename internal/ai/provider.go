// Package ai wraps the text-generation and embedding backend behind a small
// capability interface so the rest of the server never sees a vendor API.
package ai

import (
	"context"
	"fmt"
	"reasondesk/config"
	"time"
)

// Provider generates free text and fixed-dimension embeddings.
type Provider interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	EmbedText(ctx context.Context, text string) ([]float64, error)
	Dimension() int
}

// New builds the configured provider wrapped in the retry policy.
func New(cfg config.Config) (Provider, error) {
	var base Provider

	switch cfg.AIProvider {
	case "gemini":
		gemini, err := NewGemini(GeminiConfig{
			BaseURL:        cfg.AIBaseURL,
			APIKey:         cfg.AIAPIKey,
			Model:          cfg.AIModel,
			EmbeddingModel: cfg.AIEmbeddingModel,
			Dimension:      cfg.AIEmbeddingDimension,
			Temperature:    cfg.AITemperature,
			MaxTokens:      cfg.AIMaxTokens,
			Timeout:        time.Duration(cfg.AITimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		base = gemini
	case "stub", "":
		base = NewStub(cfg.AIEmbeddingDimension)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.AIProvider)
	}

	return NewRetrying(base, cfg.AIRetryCount, time.Duration(cfg.AIRetryBaseDelayMs)*time.Millisecond), nil
}
