package chunker

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Factory создаёт chunker на основе метода и типа файла
type Factory struct {
	config Config
}

// NewFactory создаёт новую фабрику chunker'ов
func NewFactory(config Config) *Factory {
	return &Factory{config: config}
}

// GetChunker возвращает подходящий chunker для файла
func (f *Factory) GetChunker(filePath, method string) (Chunker, error) {
	// Если метод явно указан - используем его
	if method != "" {
		return f.GetChunkerByMethod(method)
	}

	// Иначе определяем по расширению файла
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".md", ".markdown":
		return f.GetChunkerByMethod("markdown")
	default:
		return f.GetChunkerByMethod("recursive")
	}
}

// GetChunkerByMethod возвращает chunker по названию метода
func (f *Factory) GetChunkerByMethod(method string) (Chunker, error) {
	var (
		c   Chunker
		err error
	)
	switch strings.ToLower(method) {
	case "markdown", "md":
		c, err = NewMarkdownChunker(f.config)
	case "recursive", "simple", "text", "txt":
		c, err = NewRecursiveSplitter(f.config)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
