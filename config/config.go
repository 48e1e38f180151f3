package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the newsie service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Databases DatabasesConfig `mapstructure:"databases"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Listen         string   `mapstructure:"listen"`
	Debug          bool     `mapstructure:"debug"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ProvidersConfig selects and configures the embedding and answer providers
type ProvidersConfig struct {
	Embedder string       `mapstructure:"embedder"` // jina or openai
	Answerer string       `mapstructure:"answerer"` // gemini or openai
	Jina     JinaConfig   `mapstructure:"jina"`
	Gemini   GeminiConfig `mapstructure:"gemini"`
	OpenAI   OpenAIConfig `mapstructure:"openai"`
}

// JinaConfig contains Jina embeddings API settings
type JinaConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// GeminiConfig contains Gemini generateContent API settings
type GeminiConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// OpenAIConfig contains OpenAI chat/embeddings API settings
type OpenAIConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	CompletionModel string        `mapstructure:"completion_model"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// DatabasesConfig contains external storage settings
type DatabasesConfig struct {
	Redis   RedisConfig   `mapstructure:"redis"`
	Upstash UpstashConfig `mapstructure:"upstash"`
	Qdrant  QdrantConfig  `mapstructure:"qdrant"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("databases.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("databases.redis.port required")
	}
	return nil
}

// UpstashConfig contains Upstash REST settings. When both URL and token are
// set, the session store talks to Upstash instead of a direct Redis client.
type UpstashConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether the Upstash backend should be selected.
func (u UpstashConfig) Enabled() bool {
	return strings.TrimSpace(u.URL) != "" && strings.TrimSpace(u.Token) != ""
}

// QdrantConfig contains vector index settings
type QdrantConfig struct {
	URL        string        `mapstructure:"url"`
	APIKey     string        `mapstructure:"api_key"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func (q QdrantConfig) Validate() error {
	if strings.TrimSpace(q.URL) == "" {
		return fmt.Errorf("databases.qdrant.url required")
	}
	if strings.TrimSpace(q.Collection) == "" {
		return fmt.Errorf("databases.qdrant.collection required")
	}
	return nil
}

// IngestConfig controls the offline ingestion pipeline
type IngestConfig struct {
	Feeds          []string      `mapstructure:"feeds"`
	Sources        []string      `mapstructure:"sources"` // allowlist of source names, empty = all
	MaxArticles    int           `mapstructure:"max_articles"`
	ChunkSize      int           `mapstructure:"chunk_size"`
	Overlap        int           `mapstructure:"overlap"`
	CronSpec       string        `mapstructure:"cron_spec"` // empty disables the scheduler
	Fetcher        string        `mapstructure:"fetcher"`   // readability or chromedp
	BlockedDomains []string      `mapstructure:"blocked_domains"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
}

func (i IngestConfig) Validate() error {
	if i.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be > 0")
	}
	if i.Overlap < 0 || i.Overlap >= i.ChunkSize {
		return fmt.Errorf("ingest.overlap must be in [0, ingest.chunk_size)")
	}
	return nil
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name
	viper.SetDefault("general.listen", ":5000")
	viper.SetDefault("providers.embedder", "jina")
	viper.SetDefault("providers.answerer", "gemini")
	viper.SetDefault("providers.jina.model", "jina-embeddings-v3")
	viper.SetDefault("providers.jina.timeout", 30*time.Second)
	viper.SetDefault("providers.gemini.model", "gemini-1.5-flash")
	viper.SetDefault("providers.gemini.timeout", 30*time.Second)
	viper.SetDefault("providers.openai.completion_model", "gpt-4o-mini")
	viper.SetDefault("providers.openai.embedding_model", "text-embedding-3-large")
	viper.SetDefault("providers.openai.temperature", 0.2)
	viper.SetDefault("providers.openai.max_tokens", 4096)
	viper.SetDefault("providers.openai.timeout", 30*time.Second)
	viper.SetDefault("databases.redis.host", "localhost")
	viper.SetDefault("databases.redis.port", "6379")
	viper.SetDefault("databases.redis.timeout", 5*time.Second)
	viper.SetDefault("databases.qdrant.url", "http://127.0.0.1:6333")
	viper.SetDefault("databases.qdrant.collection", "news_articles")
	viper.SetDefault("databases.qdrant.timeout", 15*time.Second)
	viper.SetDefault("ingest.max_articles", 50)
	viper.SetDefault("ingest.chunk_size", 500)
	viper.SetDefault("ingest.overlap", 50)
	viper.SetDefault("ingest.fetcher", "readability")
	viper.SetDefault("ingest.fetch_timeout", 20*time.Second)

	if path == "" {
		viper.AddConfigPath("./config") // path to look for the config file in
		viper.AddConfigPath(".")        // optionally look for config in the working directory
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)                                // bin/
		viper.AddConfigPath(filepath.Join(exeDir, ".."))           // repo root
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config")) // repo root/config
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("NEWSIE")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv() // read in environment variables that match (NEWSIE_*)

	err := viper.ReadInConfig() // Find and read the config file
	if err != nil {             // Handle errors reading the config file
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	// unmarshal config
	var config Config

	if err = viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Databases.Redis.Validate(); err != nil && !config.Databases.Upstash.Enabled() {
		panic(err)
	}
	if err := config.Databases.Qdrant.Validate(); err != nil {
		panic(err)
	}
	if err := config.Ingest.Validate(); err != nil {
		panic(err)
	}
	return &config
}
