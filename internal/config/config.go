package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"

	"mailrag/internal/chunker"
)

type Config struct {
	DataDir  string `env:"DATA_DIR" envDefault:"./data" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	// LLM
	LLMProvider     string  `env:"LLM_PROVIDER" envDefault:"openai" validate:"oneof=openai ollama"`
	OpenAIKey       string  `env:"OPENAI_API_KEY"`
	OpenAIURL       string  `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1" validate:"url"`
	LLMModel        string  `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	Temperature     float64 `env:"TEMPERATURE" envDefault:"0.7" validate:"gte=0,lte=2"`
	MaxOutputTokens int     `env:"MAX_OUTPUT_TOKENS" envDefault:"800" validate:"gt=0"`
	OllamaURL       string  `env:"OLLAMA_URL" envDefault:"http://localhost:11434" validate:"url"`
	OllamaModel     string  `env:"OLLAMA_MODEL" envDefault:"llama3.2"`

	// Embeddings
	EmbedProvider    string `env:"EMBED_PROVIDER" envDefault:"ollama" validate:"oneof=openai ollama"`
	OllamaEmbedModel string `env:"OLLAMA_EMBED_MODEL" envDefault:"nomic-embed-text"`
	OpenAIEmbedModel string `env:"OPENAI_EMBED_MODEL" envDefault:"text-embedding-3-small"`
	EmbedCacheSize   int    `env:"EMBED_CACHE_SIZE" envDefault:"1024" validate:"gte=0"`

	// Chunking
	ChunkSize       int      `env:"CHUNK_SIZE" envDefault:"1000" validate:"gt=0"`
	ChunkOverlap    int      `env:"CHUNK_OVERLAP" envDefault:"200" validate:"gte=0"`
	ChunkSeparators []string `env:"CHUNK_SEPARATORS" envSeparator:","`
	ChunkLength     string   `env:"CHUNK_LENGTH" envDefault:"runes" validate:"oneof=runes chars bytes tokens"`
	TokenEncoding   string   `env:"TOKEN_ENCODING" envDefault:"cl100k_base"`

	// Gmail
	MaxEmails         int    `env:"MAX_EMAILS" envDefault:"500" validate:"gt=0"`
	GmailQuery        string `env:"GMAIL_QUERY"`
	GoogleCredentials string `env:"GOOGLE_CREDENTIALS" envDefault:"credentials.json"`
	GoogleTokenFile   string `env:"GOOGLE_TOKEN_FILE" envDefault:"token.json"`
	IndexAttachments  bool   `env:"INDEX_ATTACHMENTS" envDefault:"false"`

	// Retrieval
	TopK           int `env:"TOP_K" envDefault:"5" validate:"gt=0"`
	MaxHistory     int `env:"MAX_HISTORY" envDefault:"6" validate:"gte=0"`
	MaxPromptChars int `env:"MAX_PROMPT_CHARS" envDefault:"12000" validate:"gt=0"`
	MaxConcurrency int `env:"MAX_CONCURRENCY" envDefault:"4" validate:"gt=0"`
}

func Init(cfg interface{}) error {
	return env.Parse(cfg)
}

// Load парсит окружение и проверяет конфиг
func Load() (*Config, error) {
	cfg := &Config{}
	if err := Init(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет теги validate и зависимости между полями
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if (c.LLMProvider == "openai" || c.EmbedProvider == "openai") && c.OpenAIKey == "" {
		return errors.New("invalid config: OPENAI_API_KEY required when LLM_PROVIDER or EMBED_PROVIDER is openai")
	}
	return nil
}

// VectorDir - каталог persistent-базы chromem
func (c *Config) VectorDir() string {
	return filepath.Join(c.DataDir, "vectors")
}

// MetaDBFile - SQLite с метаданными писем
func (c *Config) MetaDBFile() string {
	return filepath.Join(c.DataDir, "gmail_stats.db")
}

// ChunkerConfig собирает явный конфиг чанкера из настроек приложения
func (c *Config) ChunkerConfig() (chunker.Config, error) {
	lengthFn, err := chunker.LengthFuncByName(c.ChunkLength, c.TokenEncoding)
	if err != nil {
		return chunker.Config{}, err
	}

	separators := chunker.DefaultSeparators
	if len(c.ChunkSeparators) > 0 {
		separators = make([]string, 0, len(c.ChunkSeparators))
		for _, sep := range c.ChunkSeparators {
			separators = append(separators, unescape(sep))
		}
	}

	return chunker.Config{
		ChunkSize:      c.ChunkSize,
		ChunkOverlap:   c.ChunkOverlap,
		Separators:     separators,
		LengthFunction: lengthFn,
	}, nil
}

// unescape переводит \n, \t и \s из env в реальные символы
func unescape(s string) string {
	return strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\s`, " ").Replace(s)
}
