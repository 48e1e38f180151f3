package rag

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/newsie/models"
	"github.com/mohammad-safakhou/newsie/provider"
	"github.com/mohammad-safakhou/newsie/vectorstore"
)

// DefaultTopK is the neighbour count used when the caller does not pick one.
const DefaultTopK = 50

// Fixed fallback answers. Empty retrieval and collaborator failures are
// answered with these instead of handing the language model an empty
// context or surfacing a raw fault to the user.
const (
	EmbeddingFailedMessage = "Error: Could not generate embedding for the query."
	NoResultsMessage       = "No relevant articles found."
	AnswerFailedMessage    = "Error: Could not get an answer from the language model. Please try again later."
)

// Orchestrator answers a query by embedding it, retrieving the nearest
// chunks from the vector index and asking the answer provider to compose a
// grounded reply.
type Orchestrator struct {
	embedder provider.Embedder
	index    vectorstore.VectorStore
	answerer provider.Answerer
	logger   *log.Logger
}

func NewOrchestrator(embedder provider.Embedder, index vectorstore.VectorStore, answerer provider.Answerer, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[RAG] ", log.LstdFlags)
	}
	return &Orchestrator{
		embedder: embedder,
		index:    index,
		answerer: answerer,
		logger:   logger,
	}
}

// Answer runs one retrieval-augmented turn. Embedding and answer-synthesis
// failures come back as user-facing strings with a nil error; only a vector
// index transport failure is returned as an error for the caller to map.
func (o *Orchestrator) Answer(ctx context.Context, query string, topK int) (string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vec, err := o.embedder.Embed(ctx, query)
	if err != nil {
		o.logger.Printf("embedding failed for query %q: %v", query, err)
		return EmbeddingFailedMessage, nil
	}

	// No similarity floor: every returned neighbour is candidate context,
	// however distant. Recall is deliberately favoured over precision.
	hits, err := o.index.Search(ctx, vec, topK)
	if err != nil {
		return "", fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		return NoResultsMessage, nil
	}

	answer, err := o.answerer.Answer(ctx, query, BuildContext(hits))
	if err != nil {
		o.logger.Printf("answer synthesis failed: %v", err)
		return AnswerFailedMessage, nil
	}
	return answer, nil
}

// BuildContext renders retrieved chunks as a 1-indexed enumeration in the
// order the index returned them. The orchestrator never re-sorts.
func BuildContext(hits []models.ScoredChunk) string {
	lines := make([]string, len(hits))
	for i, h := range hits {
		lines[i] = fmt.Sprintf("%d. %s - %s", i+1, h.Chunk.Title, h.Chunk.Text)
	}
	return strings.Join(lines, "\n\n")
}
