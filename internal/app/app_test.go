package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailrag/internal/chunker"
	"mailrag/internal/config"
	"mailrag/internal/indexer"
	"mailrag/internal/mail"
	"mailrag/internal/metadb"
	"mailrag/internal/rag"
	"mailrag/internal/store"
)

type fakeLLM struct {
	calls int
	last  []rag.Message
}

func (f *fakeLLM) Chat(_ context.Context, msgs []rag.Message, _ int) (string, error) {
	f.calls++
	f.last = msgs
	return "Lunch is at noon.", nil
}

type fakeFetcher struct {
	msgs []*mail.Message
}

func (f *fakeFetcher) FetchMessages(context.Context, mail.FetchOptions) ([]*mail.Message, error) {
	return f.msgs, nil
}

// vowelEmbedding - детерминированный эмбеддинг по гласным
func vowelEmbedding(_ context.Context, text string) ([]float32, error) {
	v := []float32{1, 0, 0, 0, 0, 0}
	for _, r := range strings.ToLower(text) {
		if i := strings.IndexRune("aeiou", r); i >= 0 {
			v[i+1]++
		}
	}
	return v, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:         t.TempDir(),
		LLMProvider:     "openai",
		EmbedProvider:   "ollama",
		ChunkSize:       200,
		ChunkOverlap:    20,
		ChunkLength:     "runes",
		MaxEmails:       10,
		TopK:            3,
		MaxHistory:      4,
		MaxPromptChars:  4000,
		MaxOutputTokens: 100,
		MaxConcurrency:  2,
	}
}

func newTestApp(t *testing.T) (*App, *fakeLLM) {
	t.Helper()
	a, err := New(testConfig(t))
	require.NoError(t, err)

	a.store, err = store.Open("", vowelEmbedding, 2)
	require.NoError(t, err)

	a.meta, err = metadb.Open(context.Background(), a.cfg.MetaDBFile())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	llm := &fakeLLM{}
	a.engine = rag.NewEngine(llm, a.store, rag.Options{TopK: 3, MaxHistory: 4}, a.metrics)
	return a, llm
}

func messages() []*mail.Message {
	return []*mail.Message{
		{
			ID: "m1", ThreadID: "t1",
			From:    "Alice <alice@example.com>",
			Date:    "Mon, 02 Jan 2006 10:00:00 +0000",
			Subject: "Lunch",
			Body:    "Can you make it at noon on Friday?",
			Labels:  []string{"INBOX", "UNREAD"},
		},
		{
			ID: "m2", ThreadID: "t2",
			From:    "bob@other.net",
			Date:    "Tue, 03 Jan 2006 08:00:00 +0000",
			Subject: "Report",
			Body:    "Quarterly report attached.",
			Labels:  []string{"INBOX"},
		},
	}
}

func index(t *testing.T, a *App) *indexer.Stats {
	t.Helper()
	stats, err := a.runIndexer(context.Background(), &fakeFetcher{msgs: messages()}, IndexOptions{})
	require.NoError(t, err)
	return stats
}

func TestApp_IndexAndAsk(t *testing.T) {
	a, llm := newTestApp(t)

	stats := index(t, a)
	assert.Equal(t, 2, stats.Emails)
	assert.Equal(t, 2, stats.Fragments)
	assert.Equal(t, 2, a.store.Count())

	n, err := a.meta.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var out bytes.Buffer
	require.NoError(t, a.Ask(context.Background(), "when is lunch?", &out))
	assert.Equal(t, 1, llm.calls)
	assert.Contains(t, out.String(), "Lunch is at noon.")
	assert.Contains(t, out.String(), "Sources:")
	assert.Contains(t, out.String(), "alice@example.com")
}

func TestApp_IndexTwiceNeedsForce(t *testing.T) {
	a, _ := newTestApp(t)
	index(t, a)

	_, err := a.runIndexer(context.Background(), &fakeFetcher{msgs: messages()}, IndexOptions{})
	assert.ErrorIs(t, err, indexer.ErrAlreadyIndexed)

	stats, err := a.runIndexer(context.Background(), &fakeFetcher{msgs: messages()}, IndexOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Fragments)
	assert.Equal(t, 2, a.store.Count())
}

func TestApp_Search(t *testing.T) {
	a, llm := newTestApp(t)
	index(t, a)

	var out bytes.Buffer
	require.NoError(t, a.Search(context.Background(), "report", 1, &out))
	assert.Contains(t, out.String(), "Found 1 relevant fragments")
	assert.Zero(t, llm.calls)
}

func TestApp_Run(t *testing.T) {
	a, llm := newTestApp(t)
	index(t, a)

	in := strings.NewReader("when is lunch?\n\n/reset\nexit\nnever asked\n")
	var out bytes.Buffer
	require.NoError(t, a.Run(context.Background(), in, &out))

	assert.Equal(t, 1, llm.calls)
	assert.Contains(t, out.String(), "Lunch is at noon.")
	assert.Contains(t, out.String(), "History cleared.")
	assert.Empty(t, a.engine.History())
}

func TestApp_RunStopsOnEOF(t *testing.T) {
	a, llm := newTestApp(t)

	var out bytes.Buffer
	require.NoError(t, a.Run(context.Background(), strings.NewReader(""), &out))
	assert.Zero(t, llm.calls)
}

func TestApp_Stats(t *testing.T) {
	a, _ := newTestApp(t)
	index(t, a)

	var out bytes.Buffer
	require.NoError(t, a.Stats(context.Background(), metadb.Filter{}, &out))
	s := out.String()
	assert.Contains(t, s, "Mailbox summary")
	assert.Contains(t, s, "Total emails")
	assert.Contains(t, s, "alice@example.com")
	assert.Contains(t, s, "other.net")
	assert.Contains(t, s, "2006-01-02")
	assert.Contains(t, s, "By hour (UTC)")
	assert.Contains(t, s, "10:00")
	assert.Contains(t, s, "Recent threads")
	assert.Contains(t, s, "Report")
}

func TestStatsFile_DateFilter(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gmail_stats.db")

	db, err := metadb.Open(ctx, path)
	require.NoError(t, err)
	_, _, err = db.UpsertEmails(ctx, messages(), "")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Конец дня 2006-01-02 включает письмо в 10:00, но не письмо 3-го
	var out bytes.Buffer
	require.NoError(t, StatsFile(ctx, path, metadb.Filter{
		To: time.Date(2006, 1, 2, 23, 59, 59, 0, time.UTC),
	}, &out))
	s := out.String()
	assert.Contains(t, s, "alice@example.com")
	assert.NotContains(t, s, "bob@other.net")
}

func TestApp_NotInitialized(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)

	assert.Error(t, a.Ask(context.Background(), "q", &bytes.Buffer{}))
	assert.Error(t, a.Serve(context.Background(), ""))
	assert.NoError(t, a.Close())
}

func TestApp_LLMConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.OpenAIURL = "https://api.openai.com/v1"
	cfg.OpenAIKey = "sk-test"
	cfg.LLMModel = "gpt-4o-mini"
	cfg.OllamaURL = "http://localhost:11434/"
	cfg.OllamaModel = "llama3.2"
	cfg.OllamaEmbedModel = "nomic-embed-text"

	a, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com/v1", a.llmConfig().BaseURL)
	assert.Equal(t, "sk-test", a.llmConfig().APIKey)
	assert.Equal(t, []string{"nomic-embed-text"}, a.ollamaModels())

	cfg.LLMProvider = "ollama"
	lc := a.llmConfig()
	assert.Equal(t, "http://localhost:11434/v1", lc.BaseURL)
	assert.Empty(t, lc.APIKey)
	assert.Equal(t, "llama3.2", lc.Model)
	assert.Equal(t, []string{"llama3.2", "nomic-embed-text"}, a.ollamaModels())
}

func TestChunkFile(t *testing.T) {
	dir := t.TempDir()
	cfg := chunker.Config{ChunkSize: 30, Separators: chunker.DefaultSeparators}

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("first paragraph here\n\nsecond paragraph here"), 0o644))

	fragments, err := ChunkFile(cfg, txt, "")
	require.NoError(t, err)
	require.Len(t, fragments, 2)
	assert.Equal(t, "first paragraph here", fragments[0].Text)
	assert.Equal(t, "notes.txt", fragments[0].Metadata["source"])
	assert.Equal(t, 2, fragments[1].Metadata[chunker.MetaChunkCount])

	md := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(md, []byte("# Intro\n\nhello\n\n# Usage\n\nrun it\n"), 0o644))

	fragments, err = ChunkFile(cfg, md, "")
	require.NoError(t, err)
	require.NotEmpty(t, fragments)
	assert.Equal(t, "Intro", fragments[0].Metadata[chunker.MetaSection])

	var out bytes.Buffer
	PrintChunks(&out, fragments, nil)
	assert.Contains(t, out.String(), "Chunk 0/")
}

func TestChunkFile_Errors(t *testing.T) {
	dir := t.TempDir()
	cfg := chunker.Config{ChunkSize: 30, Separators: chunker.DefaultSeparators}

	_, err := ChunkFile(cfg, filepath.Join(dir, "missing.txt"), "")
	assert.Error(t, err)

	docx := filepath.Join(dir, "file.docx")
	require.NoError(t, os.WriteFile(docx, []byte("x"), 0o644))
	_, err = ChunkFile(cfg, docx, "")
	assert.ErrorContains(t, err, "unsupported format")

	txt := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))
	_, err = ChunkFile(cfg, txt, "semantic")
	assert.ErrorIs(t, err, chunker.ErrUnknownMethod)
}
