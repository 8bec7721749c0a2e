package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"mailrag/internal/app"
	"mailrag/internal/config"
	"mailrag/internal/logging"
	"mailrag/internal/metadb"
	"mailrag/internal/metrics"
)

func newRootCmd() *cobra.Command {
	var dataDir string

	root := &cobra.Command{
		Use:           "mailrag",
		Short:         "Ask questions about your Gmail with retrieval-augmented generation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Флаг имеет приоритет над DATA_DIR из окружения
			if dataDir != "" {
				return os.Setenv("DATA_DIR", dataDir)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&dataDir, "data", "", "data directory for the vector store and metadata (env DATA_DIR)")

	root.AddCommand(
		newIndexCmd(),
		newSearchCmd(),
		newAskCmd(),
		newChatCmd(),
		newStatsCmd(),
		newServeCmd(),
		newChunkCmd(),
	)
	return root
}

// withApp загружает конфиг, настраивает логгер и инициализирует приложение
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel)

	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}
	defer a.Close()

	if err := a.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	return fn(a)
}

func newIndexCmd() *cobra.Command {
	var opts app.IndexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Fetch emails from Gmail and index them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				_, err := a.Index(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
				return err
			})
		},
	}
	cmd.Flags().IntVar(&opts.MaxEmails, "max", 0, "maximum number of emails to fetch (env MAX_EMAILS)")
	cmd.Flags().StringVar(&opts.Query, "query", "", "Gmail search query, e.g. newer_than:30d (env GMAIL_QUERY)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "clear the vector store and reindex")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Show the most similar email fragments without asking the LLM",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				return a.Search(cmd.Context(), strings.Join(args, " "), k, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 5, "number of fragments")
	return cmd
}

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Answer a single question with sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				return a.Ask(cmd.Context(), strings.Join(args, " "), cmd.OutOrStdout())
			})
		},
	}
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive question answering with conversation history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				return a.Run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}

func newStatsCmd() *cobra.Command {
	var (
		f            metadb.Filter
		since, until string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Mailbox statistics from indexed metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if f.From, err = parseDay(since); err != nil {
				return fmt.Errorf("invalid --since: %w", err)
			}
			if f.To, err = parseUntil(until); err != nil {
				return fmt.Errorf("invalid --until: %w", err)
			}

			// Статистике нужна только SQLite: без Validate, Ollama и эмбеддингов
			cfg, err := loadLocalConfig()
			if err != nil {
				return err
			}
			return app.StatsFile(cmd.Context(), cfg.MetaDBFile(), f, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "only emails on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "only emails up to this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.Label, "label", "", "Gmail label, e.g. INBOX")
	cmd.Flags().StringVar(&f.FromDomain, "domain", "", "sender domain")
	cmd.Flags().BoolVar(&f.UnreadOnly, "unread", false, "only unread emails")
	cmd.Flags().StringVar(&f.Search, "search", "", "subject or snippet substring")
	return cmd
}

func newServeCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				return a.Serve(cmd.Context(), metricsAddr)
			})
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. "+metrics.DefaultAddr)
	return cmd
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return cast.ToTimeE(s)
}

// parseUntil - включительная верхняя граница: дата без времени означает конец дня
func parseUntil(s string) (time.Time, error) {
	t, err := parseDay(s)
	if err != nil || t.IsZero() {
		return t, err
	}
	if t.Equal(t.Truncate(24 * time.Hour)) {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t, nil
}

// loadLocalConfig читает окружение без Validate: ключи LLM для локальных команд не нужны
func loadLocalConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if err := config.Init(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	logging.Setup(cfg.LogLevel)
	return cfg, nil
}

func newChunkCmd() *cobra.Command {
	var method string

	cmd := &cobra.Command{
		Use:   "chunk FILE",
		Short: "Split a local .txt, .md or .pdf file and print the chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadLocalConfig()
			if err != nil {
				return err
			}

			cc, err := cfg.ChunkerConfig()
			if err != nil {
				return err
			}
			fragments, err := app.ChunkFile(cc, args[0], method)
			if err != nil {
				return err
			}
			app.PrintChunks(cmd.OutOrStdout(), fragments, cc.LengthFunction)
			log.Debug("done", "chunks", len(fragments))
			return nil
		},
	}
	cmd.Flags().StringVar(&method, "method", "", "chunking method: recursive or markdown (default: by extension)")
	return cmd
}
