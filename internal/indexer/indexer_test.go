package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailrag/internal/chunker"
	"mailrag/internal/mail"
	"mailrag/internal/metrics"
	"mailrag/internal/store"
)

type fakeFetcher struct {
	msgs []*mail.Message
	err  error
	opts mail.FetchOptions
}

func (f *fakeFetcher) FetchMessages(_ context.Context, opts mail.FetchOptions) ([]*mail.Message, error) {
	f.opts = opts
	return f.msgs, f.err
}

type fakeMeta struct {
	got []*mail.Message
}

func (f *fakeMeta) UpsertEmails(_ context.Context, msgs []*mail.Message, _ string) (int, int, error) {
	f.got = msgs
	return len(msgs), 0, nil
}

type fakeVectors struct {
	docs   []chunker.Document
	keys   []string
	resets int
}

func (f *fakeVectors) Count() int { return len(f.docs) }

func (f *fakeVectors) Reset() error {
	f.resets++
	f.docs = nil
	f.keys = nil
	return nil
}

func (f *fakeVectors) AddFragments(_ context.Context, frags []chunker.Document, key store.KeyFunc) (int, error) {
	for _, d := range frags {
		f.docs = append(f.docs, d)
		f.keys = append(f.keys, key(d))
	}
	return len(frags), nil
}

func newSplitter(t *testing.T, size int) chunker.Chunker {
	t.Helper()
	s, err := chunker.NewRecursiveSplitter(chunker.Config{
		ChunkSize:  size,
		Separators: chunker.DefaultSeparators,
	})
	require.NoError(t, err)
	return s
}

func messages() []*mail.Message {
	return []*mail.Message{
		{ID: "m1", ThreadID: "t1", Subject: "one", Body: "first body"},
		{ID: "m2", ThreadID: "t2", Subject: "two", Body: strings.Repeat("word ", 40)},
		{ID: "m3", ThreadID: "t3"},
	}
}

func TestIndexer_Run(t *testing.T) {
	fetcher := &fakeFetcher{msgs: messages()}
	meta := &fakeMeta{}
	vectors := &fakeVectors{}
	m := metrics.New()

	ix := New(fetcher, meta, vectors, newSplitter(t, 50), 3, m)
	stats, err := ix.Run(context.Background(), Options{MaxEmails: 10, Query: "newer_than:7d"})
	require.NoError(t, err)

	assert.Equal(t, 10, fetcher.opts.MaxResults)
	assert.Equal(t, "newer_than:7d", fetcher.opts.Query)
	assert.Equal(t, 3, fetcher.opts.Concurrency)
	assert.Len(t, meta.got, 3)

	assert.Equal(t, 3, stats.Emails)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 3, stats.Inserted)
	assert.Greater(t, stats.Fragments, 2)
	assert.Equal(t, stats.Fragments, len(vectors.docs))

	// Порядок фрагментов - порядок писем
	assert.Equal(t, "m1", vectors.keys[0])
	for _, k := range vectors.keys[1:] {
		assert.Equal(t, "m2", k)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.EmailsFetched))
	assert.Equal(t, float64(stats.Fragments), testutil.ToFloat64(m.FragmentsStored))
}

func TestIndexer_AlreadyIndexed(t *testing.T) {
	vectors := &fakeVectors{docs: []chunker.Document{{Text: "x"}}}
	ix := New(&fakeFetcher{msgs: messages()}, nil, vectors, newSplitter(t, 50), 1, nil)

	_, err := ix.Run(context.Background(), Options{MaxEmails: 5})
	assert.ErrorIs(t, err, ErrAlreadyIndexed)
	assert.Equal(t, 0, vectors.resets)
}

func TestIndexer_ForceReindex(t *testing.T) {
	vectors := &fakeVectors{docs: []chunker.Document{{Text: "old"}}}
	ix := New(&fakeFetcher{msgs: messages()[:1]}, nil, vectors, newSplitter(t, 50), 1, nil)

	stats, err := ix.Run(context.Background(), Options{MaxEmails: 5, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, vectors.resets)
	assert.Equal(t, 1, stats.Fragments)
	assert.NotEqual(t, "old", vectors.docs[0].Text)
}

func TestIndexer_FetchError(t *testing.T) {
	boom := errors.New("quota exceeded")
	ix := New(&fakeFetcher{err: boom}, nil, &fakeVectors{}, newSplitter(t, 50), 1, nil)

	_, err := ix.Run(context.Background(), Options{MaxEmails: 5})
	assert.ErrorIs(t, err, boom)
}

func TestIndexer_ForceKeepsIndexWhenFetchFails(t *testing.T) {
	old := []chunker.Document{{Text: "a"}, {Text: "b"}}

	tests := []struct {
		name    string
		fetcher *fakeFetcher
		wantErr bool
	}{
		{name: "fetch error", fetcher: &fakeFetcher{err: errors.New("gmail down")}, wantErr: true},
		{name: "no emails", fetcher: &fakeFetcher{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vectors := &fakeVectors{docs: append([]chunker.Document(nil), old...)}
			ix := New(tt.fetcher, nil, vectors, newSplitter(t, 50), 1, nil)

			_, err := ix.Run(context.Background(), Options{MaxEmails: 5, Force: true})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, 0, vectors.resets)
			assert.Len(t, vectors.docs, 2)
		})
	}
}

func TestIndexer_NoEmails(t *testing.T) {
	vectors := &fakeVectors{}
	ix := New(&fakeFetcher{}, nil, vectors, newSplitter(t, 50), 1, nil)

	stats, err := ix.Run(context.Background(), Options{MaxEmails: 5})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Emails)
	assert.Empty(t, vectors.docs)
}

func TestSplitParallel_MatchesSequential(t *testing.T) {
	splitter := newSplitter(t, 30)

	docs := make([]chunker.Document, 0, 25)
	for i := 0; i < 25; i++ {
		docs = append(docs, chunker.Document{
			Text:     strings.Repeat(fmt.Sprintf("doc%d ", i), 1+i%9),
			Metadata: chunker.Metadata{"n": i},
		})
	}
	want := splitter.SplitDocuments(docs)

	for _, workers := range []int{0, 1, 4, 100} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			got, err := SplitParallel(context.Background(), splitter, docs, workers)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestSplitParallel_Empty(t *testing.T) {
	got, err := SplitParallel(context.Background(), newSplitter(t, 10), nil, 4)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSplitParallel_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	docs := []chunker.Document{{Text: "a"}, {Text: "b"}}
	_, err := SplitParallel(ctx, newSplitter(t, 10), docs, 2)
	assert.ErrorIs(t, err, context.Canceled)
}
