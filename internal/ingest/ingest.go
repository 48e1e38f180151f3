package ingest

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/newsie/config"
	"github.com/mohammad-safakhou/newsie/internal/helpers"
	"github.com/mohammad-safakhou/newsie/internal/splitter"
	"github.com/mohammad-safakhou/newsie/models"
	"github.com/mohammad-safakhou/newsie/news/extract"
	"github.com/mohammad-safakhou/newsie/news/rss"
	"github.com/mohammad-safakhou/newsie/provider"
	"github.com/mohammad-safakhou/newsie/vectorstore"
)

// embedBatchSize bounds one embeddings request during ingestion.
const embedBatchSize = 16

// feedSource lists candidate articles for a batch.
type feedSource interface {
	FetchAll(ctx context.Context, feedURLs []string, maxArticles int) ([]models.Article, []error)
}

// contentExtractor resolves an article URL to its full text.
type contentExtractor interface {
	Extract(ctx context.Context, rawURL string) string
}

// Pipeline runs the offline ingestion batch: RSS fetch, full-content
// extraction, chunking, embedding and vector index upsert.
type Pipeline struct {
	cfg       config.IngestConfig
	fetcher   feedSource
	extractor contentExtractor
	embedder  provider.Embedder
	index     vectorstore.VectorStore
	logger    *log.Logger
}

func NewPipeline(cfg config.IngestConfig, embedder provider.Embedder, index vectorstore.VectorStore, logger *log.Logger) (*Pipeline, error) {
	extractor, err := extract.NewExtractor(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	}
	return &Pipeline{
		cfg:       cfg,
		fetcher:   rss.NewFetcher(),
		extractor: extractor,
		embedder:  embedder,
		index:     index,
		logger:    logger,
	}, nil
}

// Run executes one full ingestion batch and returns the number of chunks
// written to the index.
func (p *Pipeline) Run(ctx context.Context) (int, error) {
	articles, errs := p.fetcher.FetchAll(ctx, p.cfg.Feeds, p.cfg.MaxArticles)
	for _, err := range errs {
		p.logger.Printf("feed error: %v", err)
	}
	p.logger.Printf("fetched %d articles from %d feeds", len(articles), len(p.cfg.Feeds))

	chunks := p.chunkArticles(ctx, articles)
	if len(chunks) == 0 {
		p.logger.Printf("no chunks to ingest")
		return 0, nil
	}

	vectors, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return 0, err
	}
	// Embedding failures drop individual chunks; keep pairs aligned.
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedding produced %d vectors for %d chunks", len(vectors), len(chunks))
	}

	if err := p.index.EnsureCollection(ctx, len(vectors[0])); err != nil {
		return 0, fmt.Errorf("ensure collection: %w", err)
	}
	if err := p.index.Upsert(ctx, chunks, vectors); err != nil {
		return 0, fmt.Errorf("upsert chunks: %w", err)
	}

	p.logger.Printf("ingested %d chunks from %d articles", len(chunks), len(articles))
	return len(chunks), nil
}

// chunkArticles resolves full content and splits it. The RSS summary is the
// fallback when extraction fails, so an unreachable article still
// contributes its feed snippet.
func (p *Pipeline) chunkArticles(ctx context.Context, articles []models.Article) []models.Chunk {
	var chunks []models.Chunk
	for _, a := range articles {
		if !p.sourceAllowed(a.Source) {
			continue
		}

		content := a.Content
		if a.URL != "" {
			if full := p.extractor.Extract(ctx, a.URL); full != "" && !strings.Contains(full, "Warning: Target URL returned error") {
				content = full
			}
		}
		if strings.TrimSpace(content) == "" {
			continue
		}

		parts, err := splitter.Split(content, p.cfg.ChunkSize, p.cfg.Overlap)
		if err != nil {
			// Window math is validated at config load; reaching this means
			// the config was mutated after start.
			p.logger.Printf("split %q: %v", a.Title, err)
			continue
		}
		key := documentKey(a)
		for i, text := range parts {
			chunks = append(chunks, models.Chunk{
				ID:          fmt.Sprintf("%s-%d", key, i),
				Title:       a.Title,
				ChunkIndex:  i,
				Text:        text,
				URL:         a.URL,
				PublishedAt: a.PublishedAt,
				Source:      a.Source,
			})
		}
	}
	return chunks
}

func (p *Pipeline) embedChunks(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		batch, err := p.embedder.EmbedMany(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch %d: %w", start/embedBatchSize, err)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (p *Pipeline) sourceAllowed(source string) bool {
	if len(p.cfg.Sources) == 0 {
		return true
	}
	for _, s := range p.cfg.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// documentKey identifies the article across re-ingestion runs: the
// canonical URL, or the title when the article has no usable URL.
func documentKey(a models.Article) string {
	if a.URL != "" {
		if canonical, err := helpers.CanonicalURL(a.URL); err == nil {
			return canonical
		}
		return a.URL
	}
	return a.Title
}
