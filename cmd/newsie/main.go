package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/newsie/config"
	"github.com/mohammad-safakhou/newsie/internal/ingest"
	"github.com/mohammad-safakhou/newsie/internal/server"
	"github.com/mohammad-safakhou/newsie/provider"
	"github.com/mohammad-safakhou/newsie/repository"
	"github.com/mohammad-safakhou/newsie/vectorstore"
)

// probeText is embedded once to discover the provider's vector dimension.
const probeText = "dimension probe"

func main() {
	var cfgPath string

	root := &cobra.Command{Use: "newsie"}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config.json (default: search config/, ., binary dir)")

	var serveAddr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if serveAddr == "" {
				serveAddr = os.Getenv("NEWSIE_HTTP_ADDR")
			}
			return server.Run(cfg, serveAddr)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion batch: fetch feeds, extract, embed, index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			embedder, err := provider.NewEmbedder(cfg.Providers)
			if err != nil {
				return err
			}
			index, err := vectorstore.NewVectorStore(vectorstore.QdrantStore, cfg.Databases.Qdrant)
			if err != nil {
				return err
			}
			pipeline, err := ingest.NewPipeline(cfg.Ingest, embedder, index, nil)
			if err != nil {
				return err
			}
			n, err := pipeline.Run(cmd.Context())
			if err != nil {
				return err
			}
			log.Printf("ingested %d chunks", n)
			return nil
		},
	}

	initCollection := &cobra.Command{
		Use:   "init-collection",
		Short: "Create the vector collection sized for the configured embedder",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			embedder, err := provider.NewEmbedder(cfg.Providers)
			if err != nil {
				return err
			}
			index, err := vectorstore.NewVectorStore(vectorstore.QdrantStore, cfg.Databases.Qdrant)
			if err != nil {
				return err
			}
			vec, err := embedder.Embed(cmd.Context(), probeText)
			if err != nil {
				return fmt.Errorf("probe embedding: %w", err)
			}
			if err := index.EnsureCollection(cmd.Context(), len(vec)); err != nil {
				return err
			}
			log.Printf("collection %s ready (dimension %d)", cfg.Databases.Qdrant.Collection, len(vec))
			return nil
		},
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Verify connectivity to the session store, vector index and answer provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			kv, err := repository.NewKV(ctx, cfg.Databases)
			if err != nil {
				return fmt.Errorf("session store: %w", err)
			}
			if err := kv.Ping(ctx); err != nil {
				return fmt.Errorf("session store ping: %w", err)
			}
			log.Println("session store: ok")

			embedder, err := provider.NewEmbedder(cfg.Providers)
			if err != nil {
				return err
			}
			vec, err := embedder.Embed(ctx, probeText)
			if err != nil {
				return fmt.Errorf("embedder: %w", err)
			}
			log.Printf("embedder: ok (dimension %d)", len(vec))

			index, err := vectorstore.NewVectorStore(vectorstore.QdrantStore, cfg.Databases.Qdrant)
			if err != nil {
				return err
			}
			if _, err := index.Search(ctx, vec, 1); err != nil {
				return fmt.Errorf("vector index: %w", err)
			}
			log.Println("vector index: ok")

			answerer, err := provider.NewAnswerer(cfg.Providers)
			if err != nil {
				return err
			}
			if err := answerer.Ping(ctx); err != nil {
				return fmt.Errorf("answer provider: %w", err)
			}
			log.Println("answer provider: ok")
			return nil
		},
	}

	root.AddCommand(serve, ingestCmd, initCollection, check)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
