package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"mailrag/internal/metadb"
)

const statsTopN = 10

const recentThreadsN = 10

// Stats печатает сводку по ящику из SQLite-метаданных
func (a *App) Stats(ctx context.Context, f metadb.Filter, w io.Writer) error {
	if a.meta == nil {
		return errors.New("app is not initialized")
	}
	return printStats(ctx, a.meta, f, w)
}

// StatsFile печатает сводку прямо из файла метаданных, без векторной базы и LLM
func StatsFile(ctx context.Context, path string, f metadb.Filter, w io.Writer) error {
	db, err := metadb.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to open metadata db: %w", err)
	}
	defer db.Close()

	return printStats(ctx, db, f, w)
}

func printStats(ctx context.Context, db *metadb.DB, f metadb.Filter, w io.Writer) error {
	summary, err := db.Summary(ctx, f)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, headerStyle.Render("📊 Mailbox summary"))
	fmt.Fprintln(w, renderTable([]string{"Metric", "Value"}, [][]string{
		{"Total emails", strconv.Itoa(summary.Total)},
		{"Unread", strconv.Itoa(summary.Unread)},
		{"Unique senders", strconv.Itoa(summary.UniqueSenders)},
		{"Top domain", summary.TopDomain},
		{"Emails per day", strconv.FormatFloat(summary.EmailsPerDay, 'f', 1, 64)},
	}))

	sections := []struct {
		title  string
		header string
		load   func() ([]metadb.KeyCount, error)
	}{
		{"Top senders", "Sender", func() ([]metadb.KeyCount, error) { return db.TopSenders(ctx, statsTopN, f) }},
		{"Top domains", "Domain", func() ([]metadb.KeyCount, error) { return db.TopDomains(ctx, statsTopN, f) }},
		{"Labels", "Label", func() ([]metadb.KeyCount, error) { return db.LabelBreakdown(ctx, f) }},
		{"Daily volume", "Day", func() ([]metadb.KeyCount, error) { return db.DailyVolume(ctx, f) }},
	}

	for _, s := range sections {
		counts, err := s.load()
		if err != nil {
			return err
		}
		if len(counts) == 0 {
			continue
		}
		fmt.Fprintln(w, headerStyle.Render(s.title))
		fmt.Fprintln(w, renderTable([]string{s.header, "Count"}, countRows(counts)))
	}

	hours, err := db.HourDistribution(ctx, f)
	if err != nil {
		return err
	}
	if len(hours) > 0 {
		rows := make([][]string, 0, len(hours))
		for _, h := range hours {
			rows = append(rows, []string{fmt.Sprintf("%02d:00", h.Hour), strconv.Itoa(h.Count)})
		}
		fmt.Fprintln(w, headerStyle.Render("By hour (UTC)"))
		fmt.Fprintln(w, renderTable([]string{"Hour", "Count"}, rows))
	}

	threads, err := db.RecentThreads(ctx, recentThreadsN, f)
	if err != nil {
		return err
	}
	if len(threads) > 0 {
		rows := make([][]string, 0, len(threads))
		for _, t := range threads {
			rows = append(rows, []string{
				t.LastDate.Format("2006-01-02 15:04"),
				t.Subject,
				strconv.Itoa(t.MessageCount),
				t.ThreadID,
			})
		}
		fmt.Fprintln(w, headerStyle.Render("Recent threads"))
		fmt.Fprintln(w, renderTable([]string{"Last message", "Subject", "Messages", "Thread"}, rows))
	}
	return nil
}

func countRows(counts []metadb.KeyCount) [][]string {
	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, []string{c.Key, strconv.Itoa(c.Count)})
	}
	return rows
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		String()
}
