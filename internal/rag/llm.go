package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrNoAnswer - LLM вернула пустой ответ
var ErrNoAnswer = errors.New("no response from LLM")

// Message - сообщение чата в формате OpenAI
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLM - чат-модель
type LLM interface {
	Chat(ctx context.Context, messages []Message, maxTokens int) (string, error)
}

// LLMConfig - настройки OpenAI-совместимого клиента
type LLMConfig struct {
	BaseURL     string // https://api.openai.com/v1 или <ollama>/v1
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	RetryCount  int
}

// Client - OpenAI-совместимый /chat/completions
type Client struct {
	http *resty.Client
	cfg  LLMConfig
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewClient создаёт клиента LLM
func NewClient(cfg LLMConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(retryCondition)

	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &Client{http: client, cfg: cfg}
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == 429
}

// Chat отправляет сообщения и возвращает текст первого ответа.
// maxTokens <= 0 - значение из конфига.
func (c *Client) Chat(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	var (
		result chatResponse
		apiErr apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:       c.cfg.Model,
			Messages:    messages,
			MaxTokens:   maxTokens,
			Temperature: c.cfg.Temperature,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}

	if resp.IsError() {
		if apiErr.Error.Message != "" {
			return "", fmt.Errorf("LLM returned status %d: %s", resp.StatusCode(), apiErr.Error.Message)
		}
		return "", fmt.Errorf("LLM returned status %d: %s", resp.StatusCode(), resp.String())
	}

	if len(result.Choices) == 0 {
		return "", ErrNoAnswer
	}
	return result.Choices[0].Message.Content, nil
}
