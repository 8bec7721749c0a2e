package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailrag/internal/mail"
	"mailrag/internal/metadb"
)

func TestParseUntil(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{in: "", want: time.Time{}},
		{in: "2024-01-31", want: time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)},
		{in: "2024-01-31T12:30:00Z", want: time.Date(2024, 1, 31, 12, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseUntil(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err := parseUntil("yesterday-ish")
	assert.Error(t, err)
}

func TestParseDay(t *testing.T) {
	got, err := parseDay("2024-01-31")
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC).Equal(got))
}

func TestStatsCmd_UntilIncludesWholeDayWithoutLLMKey(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")

	ctx := context.Background()
	db, err := metadb.Open(ctx, filepath.Join(dir, "gmail_stats.db"))
	require.NoError(t, err)
	_, _, err = db.UpsertEmails(ctx, []*mail.Message{
		{ID: "m1", ThreadID: "t1", From: "noon@example.com", Subject: "Noon", Date: "Wed, 31 Jan 2024 12:00:00 +0000"},
		{ID: "m2", ThreadID: "t2", From: "late@example.com", Subject: "Next day", Date: "Thu, 01 Feb 2024 09:00:00 +0000"},
	}, "")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"stats", "--until", "2024-01-31"})
	require.NoError(t, root.ExecuteContext(ctx))

	assert.Contains(t, out.String(), "noon@example.com")
	assert.NotContains(t, out.String(), "late@example.com")
}
