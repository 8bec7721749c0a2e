package app

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"mailrag/internal/rag"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

// Search печатает ближайшие фрагменты без обращения к LLM
func (a *App) Search(ctx context.Context, query string, k int, w io.Writer) error {
	if err := a.ready(); err != nil {
		return err
	}

	sources, err := a.engine.Search(ctx, query, k)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("🔍 Found %d relevant fragments", len(sources))))
	for i, s := range sources {
		fmt.Fprintf(w, "%d. %s (similarity: %.2f)\n", i+1, s.Subject, s.Similarity)
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("   %s · %s · %s", s.Sender, s.Date, s.MessageID)))
		fmt.Fprintf(w, "   %s\n", s.Snippet(200))
	}
	return nil
}

// Ask задаёт один вопрос и печатает ответ с источниками
func (a *App) Ask(ctx context.Context, question string, w io.Writer) error {
	if err := a.ready(); err != nil {
		return err
	}

	answer, err := a.engine.Query(ctx, question, a.cfg.TopK)
	if err != nil {
		return err
	}
	printAnswer(w, answer)
	return nil
}

func printAnswer(w io.Writer, answer *rag.Answer) {
	fmt.Fprintf(w, "\n%s\n\n", answer.Text)
	if len(answer.Sources) == 0 {
		return
	}

	fmt.Fprintln(w, headerStyle.Render("📎 Sources:"))
	for i, s := range answer.Sources {
		fmt.Fprintf(w, "  [%d] %s\n", i+1, s.Subject)
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("      From: %s | Date: %s | ID: %s", s.Sender, s.Date, s.MessageID)))
	}
	fmt.Fprintln(w)
}
