package chunker

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// RecursiveSplitter разбивает текст каскадом разделителей (параграф, строка,
// слово, символ) и жадно собирает куски в чанки не больше ChunkSize с
// перекрытием по хвосту предыдущего чанка.
//
// Splitter не хранит изменяемого состояния и безопасен для конкурентного использования.
type RecursiveSplitter struct {
	config Config
}

// NewRecursiveSplitter проверяет конфиг и создаёт splitter.
// Overlap >= ChunkSize не запрещён, но урезается до ChunkSize-1.
func NewRecursiveSplitter(config Config) (*RecursiveSplitter, error) {
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, config.ChunkSize)
	}
	if len(config.Separators) == 0 {
		return nil, ErrNoSeparators
	}
	if config.LengthFunction == nil {
		config.LengthFunction = RuneCount
	}
	config.Separators = append([]string(nil), config.Separators...)

	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = 0
	}
	if config.ChunkOverlap >= config.ChunkSize {
		log.Warn("chunk overlap is not smaller than chunk size, clamping",
			"overlap", config.ChunkOverlap, "chunk_size", config.ChunkSize)
		config.ChunkOverlap = config.ChunkSize - 1
	}

	return &RecursiveSplitter{config: config}, nil
}

func (s *RecursiveSplitter) Name() string {
	return "recursive"
}

// Config возвращает эффективный конфиг (после урезания overlap)
func (s *RecursiveSplitter) Config() Config {
	return s.config
}

// SplitText разбивает текст на чанки. Короткий текст (включая пустой)
// возвращается как единственный чанк.
func (s *RecursiveSplitter) SplitText(text string) []string {
	if s.length(text) <= s.config.ChunkSize {
		return []string{text}
	}

	separator := s.selectSeparator(text)
	chunks := s.merge(splitOn(text, separator), separator)
	if len(chunks) == 0 {
		// Текст из одних разделителей - один неделимый кусок
		return []string{text}
	}
	return chunks
}

// SplitDocuments разбивает документы по порядку; каждый фрагмент получает
// копию метаданных источника плюс chunk_index и chunk_count.
func (s *RecursiveSplitter) SplitDocuments(docs []Document) []Document {
	var out []Document
	for _, doc := range docs {
		chunks := s.SplitText(doc.Text)
		for i, chunk := range chunks {
			out = append(out, NewFragment(doc, chunk, i, len(chunks)))
		}
	}
	return out
}

// selectSeparator берёт первый разделитель, который встречается в тексте,
// иначе последний из списка. Пустая строка встречается в любом тексте.
func (s *RecursiveSplitter) selectSeparator(text string) string {
	for _, sep := range s.config.Separators {
		if strings.Contains(text, sep) {
			return sep
		}
	}
	return s.config.Separators[len(s.config.Separators)-1]
}

// merge жадно собирает куски в чанки.
// Кусок длиннее ChunkSize дальше не режется и становится отдельным чанком.
func (s *RecursiveSplitter) merge(pieces []string, separator string) []string {
	sepLen := s.length(separator)

	var chunks []string
	var current []string
	currentLen := 0

	for _, piece := range pieces {
		pieceLen := s.length(piece)

		if len(current) > 0 && currentLen+sepLen+pieceLen > s.config.ChunkSize {
			chunks = appendChunk(chunks, strings.Join(current, separator))
			current, currentLen = s.seed(current, separator, pieceLen)
		}

		if len(current) > 0 {
			currentLen += sepLen
		}
		current = append(current, piece)
		currentLen += pieceLen
	}

	if len(current) > 0 {
		chunks = appendChunk(chunks, strings.Join(current, separator))
	}

	return chunks
}

// seed выбирает хвост закрытого чанка для начала следующего: максимальную
// серию последних кусков, длина которой (с разделителями) не больше overlap.
// Если seed вместе со следующим куском не влезает в ChunkSize, seed
// укорачивается с начала, поэтому каждый новый чанк продвигается вперёд.
func (s *RecursiveSplitter) seed(closed []string, separator string, nextLen int) ([]string, int) {
	if s.config.ChunkOverlap == 0 {
		return nil, 0
	}
	sepLen := s.length(separator)

	start := len(closed)
	total := 0
	for i := len(closed) - 1; i >= 0; i-- {
		add := s.length(closed[i])
		if start < len(closed) {
			add += sepLen
		}
		if total+add > s.config.ChunkOverlap {
			break
		}
		total += add
		start = i
	}

	for start < len(closed) && total+sepLen+nextLen > s.config.ChunkSize {
		total -= s.length(closed[start])
		if start+1 < len(closed) {
			total -= sepLen
		}
		start++
	}

	if start == len(closed) {
		return nil, 0
	}
	return append([]string(nil), closed[start:]...), total
}

func (s *RecursiveSplitter) length(text string) int {
	return s.config.LengthFunction(text)
}

// splitOn режет по разделителю; пустой разделитель - по символам (рунам)
func splitOn(text, separator string) []string {
	return strings.Split(text, separator)
}

// appendChunk пропускает пустые чанки (текст, начинающийся с разделителя)
func appendChunk(chunks []string, chunk string) []string {
	if chunk == "" {
		return chunks
	}
	return append(chunks, chunk)
}
