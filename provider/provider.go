package provider

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/newsie/config"
	gemini_provider "github.com/mohammad-safakhou/newsie/provider/gemini"
	jina_provider "github.com/mohammad-safakhou/newsie/provider/jina"
	openai_provider "github.com/mohammad-safakhou/newsie/provider/openai"
)

// Embedder maps text to fixed-dimension vectors for similarity search
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// Answerer produces a grounded natural-language answer for a question and
// its retrieved context. Implementations carry their own behavioral prompt;
// callers treat them as opaque text-in/text-out.
type Answerer interface {
	Answer(ctx context.Context, question, context string) (string, error)
	Ping(ctx context.Context) error
}

// NewEmbedder creates the configured embedding client. The choice is made
// once at startup, never per call.
func NewEmbedder(cfg config.ProvidersConfig) (Embedder, error) {
	switch cfg.Embedder {
	case "jina":
		return jina_provider.NewClient(cfg.Jina.APIKey, cfg.Jina.Model, cfg.Jina.Timeout)
	case "openai":
		return openai_provider.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.CompletionModel, cfg.OpenAI.EmbeddingModel, cfg.OpenAI.Temperature, cfg.OpenAI.MaxTokens, cfg.OpenAI.Timeout)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedder)
	}
}

// NewAnswerer creates the configured answer-synthesis client.
func NewAnswerer(cfg config.ProvidersConfig) (Answerer, error) {
	switch cfg.Answerer {
	case "gemini":
		return gemini_provider.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Timeout)
	case "openai":
		return openai_provider.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.CompletionModel, cfg.OpenAI.EmbeddingModel, cfg.OpenAI.Temperature, cfg.OpenAI.MaxTokens, cfg.OpenAI.Timeout)
	default:
		return nil, fmt.Errorf("unsupported answer provider: %s", cfg.Answerer)
	}
}
