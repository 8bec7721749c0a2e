package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/philippgille/chromem-go"
	"github.com/spf13/cast"

	"mailrag/internal/chunker"
)

// CollectionName - коллекция с фрагментами писем
const CollectionName = "gmail_emails"

// SearchResult - результат векторного поиска
type SearchResult struct {
	ID         string
	Content    string
	Metadata   map[string]string
	Similarity float32
}

// KeyFunc возвращает ключ источника фрагмента (письмо, вложение)
type KeyFunc func(chunker.Document) string

// Store - векторная база фрагментов поверх chromem
type Store struct {
	db          *chromem.DB
	coll        *chromem.Collection
	embed       chromem.EmbeddingFunc
	concurrency int
}

// Open открывает persistent-базу в dir; пустой dir - база в памяти
func Open(dir string, embed chromem.EmbeddingFunc, concurrency int) (*Store, error) {
	var (
		db  *chromem.DB
		err error
	)
	if dir == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dir, true)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector database: %w", err)
		}
	}

	coll, err := db.GetOrCreateCollection(CollectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", CollectionName, err)
	}

	log.Debug("vector store ready", "dir", dir, "documents", coll.Count())
	return &Store{
		db:          db,
		coll:        coll,
		embed:       embed,
		concurrency: max(concurrency, 1),
	}, nil
}

// Count - число фрагментов в коллекции
func (s *Store) Count() int {
	return s.coll.Count()
}

// AddFragments эмбеддит и сохраняет фрагменты. ID - chunker.FragmentID,
// поэтому повторная индексация того же письма перезаписывает фрагменты.
func (s *Store) AddFragments(ctx context.Context, frags []chunker.Document, key KeyFunc) (int, error) {
	if len(frags) == 0 {
		return 0, nil
	}

	docs := make([]chromem.Document, 0, len(frags))
	for _, f := range frags {
		if f.Text == "" {
			continue
		}
		docs = append(docs, chromem.Document{
			ID:       chunker.FragmentID(key(f), f),
			Content:  f.Text,
			Metadata: FlattenMetadata(f.Metadata),
		})
	}

	if err := s.coll.AddDocuments(ctx, docs, s.concurrency); err != nil {
		return 0, fmt.Errorf("failed to add documents: %w", err)
	}

	log.Info("💾 Stored fragments", "count", len(docs), "total", s.coll.Count())
	return len(docs), nil
}

// Query ищет k ближайших фрагментов; k ограничивается размером коллекции.
// where - точное совпадение метаданных.
func (s *Store) Query(ctx context.Context, text string, k int, where map[string]string) ([]SearchResult, error) {
	n := min(k, s.coll.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := s.coll.Query(ctx, text, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{
			ID:         r.ID,
			Content:    r.Content,
			Metadata:   r.Metadata,
			Similarity: r.Similarity,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out, nil
}

// Reset удаляет коллекцию и создаёт её заново
func (s *Store) Reset() error {
	if err := s.db.DeleteCollection(CollectionName); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	coll, err := s.db.GetOrCreateCollection(CollectionName, nil, s.embed)
	if err != nil {
		return fmt.Errorf("failed to recreate collection: %w", err)
	}
	s.coll = coll

	log.Info("🗑️  Vector store cleared")
	return nil
}

// FlattenMetadata приводит значения метаданных к строкам, как требует chromem.
// Вложенные map и срезы кодируются в JSON.
func FlattenMetadata(md chunker.Metadata) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		switch v.(type) {
		case nil:
			out[k] = ""
			continue
		case map[string]any, []any, []string, map[string]string:
			if b, err := json.Marshal(v); err == nil {
				out[k] = string(b)
				continue
			}
		}

		s, err := cast.ToStringE(v)
		if err != nil {
			s = fmt.Sprint(v)
		}
		out[k] = s
	}
	return out
}
