package app

import (
	"context"
	"fmt"
	"io"

	"mailrag/internal/indexer"
	"mailrag/internal/mail"
)

// IndexOptions - параметры команды index
type IndexOptions struct {
	MaxEmails int
	Query     string
	Force     bool
}

// Index авторизуется в Gmail и индексирует письма.
// in и out нужны для первого OAuth-входа.
func (a *App) Index(ctx context.Context, opts IndexOptions, in io.Reader, out io.Writer) (*indexer.Stats, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}

	conf, err := mail.OAuthConfig(a.cfg.GoogleCredentials)
	if err != nil {
		return nil, err
	}
	ts, err := mail.TokenSource(ctx, conf, a.cfg.GoogleTokenFile, in, out)
	if err != nil {
		return nil, fmt.Errorf("gmail authorization failed: %w", err)
	}
	client, err := mail.NewClient(ctx, ts)
	if err != nil {
		return nil, err
	}

	return a.runIndexer(ctx, client, opts)
}

func (a *App) runIndexer(ctx context.Context, f indexer.Fetcher, opts IndexOptions) (*indexer.Stats, error) {
	if opts.MaxEmails <= 0 {
		opts.MaxEmails = a.cfg.MaxEmails
	}
	if opts.Query == "" {
		opts.Query = a.cfg.GmailQuery
	}

	ix := indexer.New(f, a.meta, a.store, a.splitter, a.cfg.MaxConcurrency, a.metrics)
	return ix.Run(ctx, indexer.Options{
		MaxEmails:      opts.MaxEmails,
		Query:          opts.Query,
		Force:          opts.Force,
		PDFAttachments: a.cfg.IndexAttachments,
	})
}
