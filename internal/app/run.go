package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// Run - интерактивный чат: вопрос на строку, /reset очищает историю, exit выходит
func (a *App) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	if err := a.ready(); err != nil {
		return err
	}

	fmt.Fprintln(out, headerStyle.Render("💬 Ask questions about your email. Type 'exit' to quit, '/reset' to clear history."))

	scanner := bufio.NewScanner(in)

	// Увеличим буфер под длинные вопросы
	const maxLineSize = 1024 * 1024
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, maxLineSize)

	for {
		select {
		case <-ctx.Done():
			log.Info("Shutting down chat")
			return nil
		default:
		}

		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("stdin error: %w", err)
			}
			// EOF
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit", "/exit", "/quit":
			return nil
		case "/reset":
			a.engine.ResetHistory()
			fmt.Fprintln(out, dimStyle.Render("History cleared."))
			continue
		}

		if err := a.Ask(ctx, line, out); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(out, errorStyle.Render("❌ "+err.Error()))
		}
	}
}
