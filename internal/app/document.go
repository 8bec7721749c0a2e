package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"mailrag/internal/chunker"
	"mailrag/internal/mail"
)

// ChunkFile разбивает локальный .txt, .md или .pdf выбранным методом.
// Пустой method - выбор по расширению.
func ChunkFile(cfg chunker.Config, path, method string) ([]chunker.Document, error) {
	content, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	log.Info("📄 File loaded", "path", path, "bytes", len(content))

	c, err := chunker.NewFactory(cfg).GetChunker(path, method)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunker: %w", err)
	}

	fragments := c.SplitDocuments([]chunker.Document{{
		Text:     content,
		Metadata: chunker.Metadata{"source": filepath.Base(path)},
	}})
	log.Info("📦 Split into chunks", "chunks", len(fragments), "chunker", c.Name())
	return fragments, nil
}

// PrintChunks печатает фрагменты с их длиной
func PrintChunks(w io.Writer, fragments []chunker.Document, length chunker.LengthFunc) {
	if length == nil {
		length = chunker.RuneCount
	}
	for _, f := range fragments {
		title := fmt.Sprintf("━━ Chunk %v/%v (%d)", f.Metadata[chunker.MetaChunkIndex], f.Metadata[chunker.MetaChunkCount], length(f.Text))
		if section, ok := f.Metadata[chunker.MetaSection]; ok {
			title += fmt.Sprintf(" · %v", section)
		}
		fmt.Fprintln(w, headerStyle.Render(title))
		fmt.Fprintln(w, f.Text)
		fmt.Fprintln(w)
	}
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return mail.PDFText(data)
	case ".md", ".markdown", ".txt", "":
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", filepath.Ext(path))
	}
}
