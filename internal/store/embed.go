package store

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/philippgille/chromem-go"
)

// EmbeddingConfig - настройки провайдера эмбеддингов
type EmbeddingConfig struct {
	Provider    string // ollama | openai
	OllamaURL   string
	OllamaModel string
	OpenAIKey   string
	OpenAIModel string
	CacheSize   int // 0 - без кэша
}

// NewEmbeddingFunc собирает функцию эмбеддинга провайдера с LRU-кэшем
func NewEmbeddingFunc(cfg EmbeddingConfig) (chromem.EmbeddingFunc, error) {
	var fn chromem.EmbeddingFunc
	switch strings.ToLower(cfg.Provider) {
	case "ollama", "":
		fn = chromem.NewEmbeddingFuncOllama(cfg.OllamaModel, strings.TrimRight(cfg.OllamaURL, "/")+"/api")
	case "openai":
		fn = chromem.NewEmbeddingFuncOpenAI(cfg.OpenAIKey, chromem.EmbeddingModelOpenAI(cfg.OpenAIModel))
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	return Cached(fn, cfg.CacheSize)
}

// Cached оборачивает функцию эмбеддинга LRU-кэшем по хэшу текста.
// Один и тот же запрос в чате не уходит к провайдеру повторно.
func Cached(fn chromem.EmbeddingFunc, size int) (chromem.EmbeddingFunc, error) {
	if size <= 0 {
		return fn, nil
	}

	cache, err := lru.New[[sha256.Size]byte, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	return func(ctx context.Context, text string) ([]float32, error) {
		key := sha256.Sum256([]byte(text))
		if v, ok := cache.Get(key); ok {
			return v, nil
		}

		v, err := fn(ctx, text)
		if err != nil {
			return nil, err
		}
		cache.Add(key, v)
		return v, nil
	}, nil
}
