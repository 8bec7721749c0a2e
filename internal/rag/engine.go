// Package rag отвечает на вопросы по письмам: поиск фрагментов,
// сборка промпта с историей и вызов LLM.
package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"mailrag/internal/mail"
	"mailrag/internal/metrics"
	"mailrag/internal/store"
)

// Retriever ищет фрагменты (store.Store)
type Retriever interface {
	Query(ctx context.Context, text string, k int, where map[string]string) ([]store.SearchResult, error)
}

// Options - параметры движка
type Options struct {
	TopK           int
	MaxHistory     int // сообщений истории в промпте
	MaxPromptChars int
	MaxTokens      int
}

// Source - найденный фрагмент письма с цитатой
type Source struct {
	Subject    string
	Sender     string
	Date       string
	MessageID  string
	ThreadID   string
	Content    string
	Similarity float32
}

// Snippet - начало содержимого не длиннее n символов
func (s Source) Snippet(n int) string {
	content := strings.TrimSpace(s.Content)
	r := []rune(content)
	if len(r) <= n {
		return content
	}
	return string(r[:n]) + "..."
}

// Answer - ответ с источниками
type Answer struct {
	Text    string
	Sources []Source
}

// Engine - RAG поверх векторной базы писем
type Engine struct {
	llm       LLM
	retriever Retriever
	opts      Options
	metrics   *metrics.Metrics

	mu      sync.Mutex
	history []Message
}

// NewEngine создаёт движок; m может быть nil
func NewEngine(llm LLM, retriever Retriever, opts Options, m *metrics.Metrics) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.MaxPromptChars <= 0 {
		opts.MaxPromptChars = 12000
	}
	return &Engine{llm: llm, retriever: retriever, opts: opts, metrics: m}
}

// Search - семантический поиск без вызова LLM
func (e *Engine) Search(ctx context.Context, query string, k int) ([]Source, error) {
	return e.SearchWhere(ctx, query, k, nil)
}

// SearchWhere - поиск с фильтром по метаданным
func (e *Engine) SearchWhere(ctx context.Context, query string, k int, where map[string]string) ([]Source, error) {
	if k <= 0 {
		k = e.opts.TopK
	}

	results, err := e.retriever.Query(ctx, query, k, where)
	if err != nil {
		return nil, err
	}

	sources := make([]Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, toSource(r))
	}
	return sources, nil
}

// Query находит контекст, спрашивает LLM и запоминает обмен в истории
func (e *Engine) Query(ctx context.Context, question string, k int) (answer *Answer, err error) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Queries.WithLabelValues(metrics.Status(err)).Inc()
			e.metrics.QueryDuration.Observe(time.Since(start).Seconds())
		}
	}()

	sources, err := e.Search(ctx, question, k)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	log.Debug("🔍 Retrieved fragments", "count", len(sources))

	history := e.History()
	messages := e.buildMessages(question, sources, history)

	text, err := e.llm.Chat(ctx, messages, e.opts.MaxTokens)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoAnswer
	}

	e.remember(Message{Role: "user", Content: question}, Message{Role: "assistant", Content: text})
	return &Answer{Text: text, Sources: sources}, nil
}

// Complete - одиночный вызов LLM без поиска и истории
func (e *Engine) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	text, err := e.llm.Chat(ctx, []Message{{Role: "user", Content: prompt}}, maxTokens)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoAnswer
	}
	return text, nil
}

// History - копия последних сообщений диалога
func (e *Engine) History() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Message(nil), e.history...)
}

// ResetHistory очищает историю диалога
func (e *Engine) ResetHistory() {
	e.mu.Lock()
	e.history = nil
	e.mu.Unlock()
}

func (e *Engine) remember(msgs ...Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.history = append(e.history, msgs...)
	if over := len(e.history) - e.opts.MaxHistory; over > 0 {
		e.history = append([]Message(nil), e.history[over:]...)
	}
}

func (e *Engine) buildMessages(question string, sources []Source, history []Message) []Message {
	fixed := len(systemPrompt) + len(userPrompt(question, ""))
	for _, h := range history {
		fixed += len(h.Content)
	}
	budget := e.opts.MaxPromptChars - fixed

	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: userPrompt(question, buildContext(sources, budget))})
	return messages
}

func toSource(r store.SearchResult) Source {
	md := r.Metadata
	return Source{
		Subject:    valueOr(md[mail.MetaSubject], "(no subject)"),
		Sender:     valueOr(md[mail.MetaSender], "(unknown sender)"),
		Date:       valueOr(md[mail.MetaDate], "(unknown date)"),
		MessageID:  valueOr(md[mail.MetaMessageID], md[mail.MetaEmailID]),
		ThreadID:   md[mail.MetaThreadID],
		Content:    r.Content,
		Similarity: r.Similarity,
	}
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
