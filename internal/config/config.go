// Package config loads ragchat configuration from a yaml file and
// RAGCHAT_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// BedrockConfig selects the Bedrock models used for generation and embedding.
type BedrockConfig struct {
	Region           string  `mapstructure:"region"`
	ModelID          string  `mapstructure:"model_id"`
	EmbeddingModelID string  `mapstructure:"embedding_model_id"`
	MaxTokens        int     `mapstructure:"max_tokens"`
	Temperature      float64 `mapstructure:"temperature"`
}

// OpenAIConfig configures the OpenAI-compatible fallback provider used for
// local development.
type OpenAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

// MemoryConfig points at a Bedrock AgentCore memory resource. An empty ID
// disables the managed memory and falls back to the local history store.
type MemoryConfig struct {
	MemoryID   string `mapstructure:"memory_id"`
	MaxRecall  int    `mapstructure:"max_recall"`
	ContextMax int    `mapstructure:"context_max"`
}

// CognitoConfig identifies the user pool backing authentication. With an
// empty ClientID the API runs unauthenticated (local development).
type CognitoConfig struct {
	UserPoolID string `mapstructure:"user_pool_id"`
	ClientID   string `mapstructure:"client_id"`
}

// RetrievalConfig controls chunking and vector search.
type RetrievalConfig struct {
	PersistDir   string `mapstructure:"persist_dir"`
	Collection   string `mapstructure:"collection"`
	TopK         int    `mapstructure:"top_k"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
}

// HistoryConfig selects the session transcript backend.
type HistoryConfig struct {
	Backend    string `mapstructure:"backend"` // memory | sqlite | redis
	SQLitePath string `mapstructure:"sqlite_path"`
	RedisAddr  string `mapstructure:"redis_addr"`
	RedisDB    int    `mapstructure:"redis_db"`
}

// Config is the root configuration.
type Config struct {
	Provider     string          `mapstructure:"provider"` // bedrock | openai
	Bedrock      BedrockConfig   `mapstructure:"bedrock"`
	OpenAI       OpenAIConfig    `mapstructure:"openai"`
	Memory       MemoryConfig    `mapstructure:"memory"`
	Cognito      CognitoConfig   `mapstructure:"cognito"`
	Retrieval    RetrievalConfig `mapstructure:"retrieval"`
	History      HistoryConfig   `mapstructure:"history"`
	TavilyAPIKey string          `mapstructure:"tavily_api_key"`
	ListenAddr   string          `mapstructure:"listen_addr"`
	LogLevel     string          `mapstructure:"log_level"`
}

// Load reads configuration from cfgFile (or ./config.yaml when empty),
// layered under RAGCHAT_* environment variables and defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.ragchat")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("RAGCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
		// No config file; defaults plus env are enough.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the keys without which the service cannot start.
func (c *Config) Validate() error {
	switch c.Provider {
	case "bedrock":
		if c.Bedrock.Region == "" {
			return fmt.Errorf("config: bedrock.region is required (or set RAGCHAT_BEDROCK_REGION)")
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("config: openai.api_key is required (or set RAGCHAT_OPENAI_API_KEY)")
		}
	default:
		return fmt.Errorf("config: unknown provider %q (want bedrock or openai)", c.Provider)
	}

	switch c.History.Backend {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("config: unknown history backend %q", c.History.Backend)
	}

	if c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		return fmt.Errorf("config: retrieval.chunk_overlap must be smaller than retrieval.chunk_size")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "bedrock")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")

	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("bedrock.embedding_model_id", "amazon.titan-embed-text-v1")
	v.SetDefault("bedrock.max_tokens", 2000)
	v.SetDefault("bedrock.temperature", 0.7)

	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")

	v.SetDefault("memory.max_recall", 10)
	v.SetDefault("memory.context_max", 5)

	v.SetDefault("retrieval.persist_dir", "./chroma_db")
	v.SetDefault("retrieval.collection", "user-documents")
	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.chunk_size", 512)
	v.SetDefault("retrieval.chunk_overlap", 50)

	v.SetDefault("history.backend", "memory")
	v.SetDefault("history.sqlite_path", "./ragchat.db")
	v.SetDefault("history.redis_addr", "localhost:6379")
	v.SetDefault("history.redis_db", 0)
}
