package chunker

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownChunker сначала режет markdown по заголовкам, затем каждую секцию
// разбивает RecursiveSplitter'ом. Фрагменты получают название секции.
type MarkdownChunker struct {
	splitter *RecursiveSplitter
}

// NewMarkdownChunker создаёт новый markdown chunker
func NewMarkdownChunker(config Config) (*MarkdownChunker, error) {
	splitter, err := NewRecursiveSplitter(config)
	if err != nil {
		return nil, err
	}
	return &MarkdownChunker{splitter: splitter}, nil
}

func (m *MarkdownChunker) Name() string {
	return "markdown"
}

// DocumentStructure содержит информацию о структуре документа
type DocumentStructure struct {
	HeadingCounts map[int]int // уровень заголовка -> количество
}

type section struct {
	title string
	text  string
}

func (m *MarkdownChunker) SplitText(content string) []string {
	var chunks []string
	for _, sec := range m.sections(content) {
		chunks = append(chunks, m.splitter.SplitText(sec.text)...)
	}
	return chunks
}

func (m *MarkdownChunker) SplitDocuments(docs []Document) []Document {
	type piece struct {
		text    string
		section string
	}

	var out []Document
	for _, doc := range docs {
		var pieces []piece
		for _, sec := range m.sections(doc.Text) {
			for _, chunk := range m.splitter.SplitText(sec.text) {
				pieces = append(pieces, piece{text: chunk, section: sec.title})
			}
		}

		for i, p := range pieces {
			fragment := NewFragment(doc, p.text, i, len(pieces))
			if p.section != "" {
				fragment.Metadata[MetaSection] = p.section
			}
			out = append(out, fragment)
		}
	}
	return out
}

// sections режет документ на секции по заголовкам выбранного уровня.
// Текст до первого заголовка - отдельная секция без названия.
func (m *MarkdownChunker) sections(content string) []section {
	source := []byte(content)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	level := selectLevel(analyzeStructure(doc))
	if level == 0 {
		return []section{{text: content}}
	}

	type mark struct {
		offset int
		title  string
	}
	var marks []mark
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Level > level || heading.Lines().Len() == 0 {
			continue
		}
		// Начало строки с заголовком (вместе с "##")
		start := heading.Lines().At(0).Start
		start = strings.LastIndexByte(content[:start], '\n') + 1
		marks = append(marks, mark{offset: start, title: extractText(heading, source)})
	}

	var sections []section
	if len(marks) > 0 {
		if pre := strings.TrimSpace(content[:marks[0].offset]); pre != "" {
			sections = append(sections, section{text: pre})
		}
	}
	for i, mk := range marks {
		end := len(content)
		if i+1 < len(marks) {
			end = marks[i+1].offset
		}
		if body := strings.TrimSpace(content[mk.offset:end]); body != "" {
			sections = append(sections, section{title: mk.title, text: body})
		}
	}

	if len(sections) == 0 {
		return []section{{text: content}}
	}
	return sections
}

// analyzeStructure считает заголовки верхнего уровня документа
func analyzeStructure(doc ast.Node) DocumentStructure {
	structure := DocumentStructure{
		HeadingCounts: make(map[int]int),
	}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if heading, ok := n.(*ast.Heading); ok {
			structure.HeadingCounts[heading.Level]++
		}
	}
	return structure
}

// selectLevel выбирает уровень заголовков для разбиения.
// 0 - заголовков нет, документ режется целиком.
func selectLevel(structure DocumentStructure) int {
	// H2-H4 с достаточным количеством заголовков
	for level := 2; level <= 4; level++ {
		minHeadings := 10
		switch level {
		case 2:
			minHeadings = 3
		case 3:
			minHeadings = 5
		}
		if structure.HeadingCounts[level] >= minHeadings {
			return level
		}
	}

	// Иначе самый крупный из имеющихся
	for level := 1; level <= 6; level++ {
		if structure.HeadingCounts[level] > 0 {
			return level
		}
	}
	return 0
}

// extractText извлекает текст из узла AST
func extractText(node ast.Node, source []byte) string {
	var buf strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if textNode, ok := child.(*ast.Text); ok {
			buf.Write(textNode.Segment.Value(source))
		}
	}
	return buf.String()
}
