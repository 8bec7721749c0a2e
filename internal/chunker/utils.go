package chunker

import (
	"crypto/sha256"
	"fmt"

	"github.com/mohae/deepcopy"
)

// NewFragment создаёт фрагмент документа: копия метаданных источника
// плюс позиция фрагмента среди соседей
func NewFragment(src Document, text string, index, count int) Document {
	metadata := CopyMetadata(src.Metadata)
	metadata[MetaChunkIndex] = index
	metadata[MetaChunkCount] = count

	return Document{
		Text:     text,
		Metadata: metadata,
	}
}

// CopyMetadata делает глубокую копию, чтобы фрагменты не делили вложенные map с источником
func CopyMetadata(metadata Metadata) Metadata {
	out := make(Metadata, len(metadata)+2)
	for k, v := range metadata {
		out[k] = deepcopy.Copy(v)
	}
	return out
}

// FragmentID генерирует стабильный идентификатор фрагмента (hash)
func FragmentID(sourceKey string, fragment Document) string {
	index := fragment.Metadata[MetaChunkIndex]
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s#%v\x00%s", sourceKey, index, fragment.Text)))
	return fmt.Sprintf("%x", hash[:8])
}
