// Package app собирает зависимости и реализует команды CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"mailrag/internal/chunker"
	"mailrag/internal/config"
	"mailrag/internal/metadb"
	"mailrag/internal/metrics"
	"mailrag/internal/rag"
	"mailrag/internal/store"
)

type App struct {
	cfg      *config.Config
	metrics  *metrics.Metrics
	splitter chunker.Chunker

	store  *store.Store
	meta   *metadb.DB
	engine *rag.Engine
}

func New(cfg *config.Config) (*App, error) {
	cc, err := cfg.ChunkerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build chunker config: %w", err)
	}
	splitter, err := chunker.NewRecursiveSplitter(cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create splitter: %w", err)
	}

	return &App{
		cfg:      cfg,
		metrics:  metrics.New(),
		splitter: splitter,
	}, nil
}

// Init проверяет Ollama, открывает векторную базу, метаданные и LLM
func (a *App) Init(ctx context.Context) error {
	if err := os.MkdirAll(a.cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if models := a.ollamaModels(); len(models) > 0 {
		if err := rag.EnsureOllamaModels(ctx, a.cfg.OllamaURL, models...); err != nil {
			return fmt.Errorf("ollama model check failed: %w", err)
		}
	}

	embed, err := store.NewEmbeddingFunc(store.EmbeddingConfig{
		Provider:    a.cfg.EmbedProvider,
		OllamaURL:   a.cfg.OllamaURL,
		OllamaModel: a.cfg.OllamaEmbedModel,
		OpenAIKey:   a.cfg.OpenAIKey,
		OpenAIModel: a.cfg.OpenAIEmbedModel,
		CacheSize:   a.cfg.EmbedCacheSize,
	})
	if err != nil {
		return err
	}

	a.store, err = store.Open(a.cfg.VectorDir(), embed, a.cfg.MaxConcurrency)
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	log.Info("📚 Vector store ready", "dir", a.cfg.VectorDir(), "fragments", a.store.Count())

	a.meta, err = metadb.Open(ctx, a.cfg.MetaDBFile())
	if err != nil {
		return fmt.Errorf("failed to open metadata db: %w", err)
	}

	a.engine = rag.NewEngine(rag.NewClient(a.llmConfig()), a.store, rag.Options{
		TopK:           a.cfg.TopK,
		MaxHistory:     a.cfg.MaxHistory,
		MaxPromptChars: a.cfg.MaxPromptChars,
		MaxTokens:      a.cfg.MaxOutputTokens,
	}, a.metrics)

	return nil
}

func (a *App) Close() error {
	if a.meta == nil {
		return nil
	}
	return a.meta.Close()
}

func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

func (a *App) llmConfig() rag.LLMConfig {
	cfg := rag.LLMConfig{
		BaseURL:     a.cfg.OpenAIURL,
		APIKey:      a.cfg.OpenAIKey,
		Model:       a.cfg.LLMModel,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxOutputTokens,
		Timeout:     2 * time.Minute,
		RetryCount:  2,
	}
	if a.cfg.LLMProvider == "ollama" {
		// Ollama отдаёт OpenAI-совместимый API под /v1
		cfg.BaseURL = strings.TrimRight(a.cfg.OllamaURL, "/") + "/v1"
		cfg.APIKey = ""
		cfg.Model = a.cfg.OllamaModel
	}
	return cfg
}

func (a *App) ollamaModels() []string {
	var models []string
	if a.cfg.LLMProvider == "ollama" {
		models = append(models, a.cfg.OllamaModel)
	}
	if a.cfg.EmbedProvider == "ollama" {
		models = append(models, a.cfg.OllamaEmbedModel)
	}
	return models
}

func (a *App) ready() error {
	if a.engine == nil {
		return errors.New("app is not initialized")
	}
	return nil
}
