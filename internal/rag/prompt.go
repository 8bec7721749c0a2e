package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const systemPrompt = "You are a helpful assistant that answers questions using the user's Gmail email excerpts. " +
	"If the answer is not present in the excerpts, say you can't find it. " +
	"When referencing information, cite the email by its Subject line."

const blockSeparator = "\n---\n"

// buildContext склеивает найденные фрагменты в блоки Subject/From/Date/Content,
// укладываясь в budget символов. Блок, который не влезает целиком, обрезается;
// когда места не остаётся, остальные отбрасываются.
func buildContext(sources []Source, budget int) string {
	var buf strings.Builder
	used := 0

	for i, s := range sources {
		header := fmt.Sprintf("Subject: %s\nFrom: %s\nDate: %s\nContent:\n", s.Subject, s.Sender, s.Date)
		sep := ""
		if i > 0 {
			sep = blockSeparator
		}

		content := strings.TrimSpace(s.Content)
		entrySize := len(sep) + len(header) + len(content) + 1
		if used+entrySize > budget {
			maxText := budget - used - len(sep) - len(header) - len("...\n")
			if maxText <= 0 {
				break
			}
			content = truncate(content, maxText) + "..."
			entrySize = len(sep) + len(header) + len(content) + 1
		}

		buf.WriteString(sep)
		buf.WriteString(header)
		buf.WriteString(content)
		buf.WriteString("\n")
		used += entrySize
	}

	return buf.String()
}

func userPrompt(question, context string) string {
	return fmt.Sprintf(`Question:
%s

Email excerpts:
%s

Instructions:
- Answer concisely.
- If relevant, include a short 'Citations:' section listing the Subject lines you relied on.
`, question, context)
}

// truncate обрезает строку до n байт, не разрывая руну
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
