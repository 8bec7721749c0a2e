package chunker

import "errors"

// Ключи, которые чанкер добавляет в метаданные каждого фрагмента
const (
	MetaChunkIndex = "chunk_index"
	MetaChunkCount = "chunk_count"
	MetaSection    = "section"
)

var (
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	ErrNoSeparators     = errors.New("at least one separator is required")
	ErrUnknownMethod    = errors.New("unknown chunking method")
)

// DefaultSeparators: параграф, строка, слово, символ
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Metadata - произвольные метаданные документа (скаляры или вложенные map)
type Metadata map[string]any

// Document - текст с метаданными. Фрагмент - тот же Document с chunk_index/chunk_count
type Document struct {
	Text     string
	Metadata Metadata
}

// LengthFunc измеряет длину текста для сравнения с ChunkSize
type LengthFunc func(string) int

// Chunker - интерфейс для всех типов chunker'ов
type Chunker interface {
	// SplitText разбивает текст на чанки
	SplitText(text string) []string

	// SplitDocuments разбивает документы на фрагменты, сохраняя порядок
	SplitDocuments(docs []Document) []Document

	// Name возвращает название chunker'а для логирования
	Name() string
}

// Config содержит общие параметры для chunker'ов
type Config struct {
	ChunkSize      int        // Максимальный размер чанка (в единицах LengthFunction)
	ChunkOverlap   int        // Примерный размер overlap между чанками
	Separators     []string   // Разделители в порядке приоритета
	LengthFunction LengthFunc // По умолчанию - количество рун
}

// DefaultConfig возвращает параметры по умолчанию (1000/200, как в исходном индексаторе)
func DefaultConfig() Config {
	return Config{
		ChunkSize:      1000,
		ChunkOverlap:   200,
		Separators:     append([]string(nil), DefaultSeparators...),
		LengthFunction: RuneCount,
	}
}
