package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
)

type ollamaTags struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// EnsureOllamaModels проверяет, что Ollama доступна, и скачивает недостающие модели
func EnsureOllamaModels(ctx context.Context, baseURL string, models ...string) error {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30 * time.Minute)

	var tags ollamaTags
	resp, err := client.R().SetContext(ctx).SetResult(&tags).Get("/api/tags")
	if err != nil || resp.IsError() {
		return fmt.Errorf("ollama is not running or not reachable at %s", baseURL)
	}

	for _, model := range models {
		if model == "" || hasModel(tags, model) {
			log.Info("Model is available", "model", model)
			continue
		}

		log.Info("Model not found, pulling...", "model", model)
		resp, err := client.R().
			SetContext(ctx).
			SetBody(map[string]any{"name": model, "stream": false}).
			Post("/api/pull")
		if err != nil {
			return fmt.Errorf("failed to pull model %s: %w", model, err)
		}
		if resp.IsError() {
			return fmt.Errorf("failed to pull model %s: status %d", model, resp.StatusCode())
		}
		log.Info("Model pulled successfully", "model", model)
	}
	return nil
}

// hasModel сравнивает имена с учётом тега :latest
func hasModel(tags ollamaTags, model string) bool {
	for _, m := range tags.Models {
		for _, name := range []string{m.Name, m.Model} {
			if name == model || strings.TrimSuffix(name, ":latest") == model {
				return true
			}
		}
	}
	return false
}
