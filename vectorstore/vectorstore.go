package vectorstore

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/newsie/config"
	"github.com/mohammad-safakhou/newsie/models"
	qdrant_store "github.com/mohammad-safakhou/newsie/vectorstore/qdrant"
)

// VectorStore stores chunk embeddings in a named collection and answers
// nearest-neighbor queries scored by cosine similarity.
type VectorStore interface {
	EnsureCollection(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, limit int) ([]models.ScoredChunk, error)
}

type StoreType string

const (
	QdrantStore StoreType = "qdrant"
)

// NewVectorStore creates the configured vector index client.
func NewVectorStore(t StoreType, cfg config.QdrantConfig) (VectorStore, error) {
	switch t {
	case QdrantStore:
		return qdrant_store.NewStorage(qdrant_store.Config{
			URL:        cfg.URL,
			APIKey:     cfg.APIKey,
			Collection: cfg.Collection,
			Timeout:    cfg.Timeout,
		}), nil
	}
	return nil, fmt.Errorf("invalid vector store type: %s", t)
}
