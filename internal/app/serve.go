package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"mailrag/internal/agent"
)

// Serve запускает MCP-сервер на stdio и, если задан адрес, /metrics.
// Завершается с закрытием stdin или отменой ctx.
func (a *App) Serve(ctx context.Context, metricsAddr string) error {
	if err := a.ready(); err != nil {
		return err
	}

	srv := agent.NewServer(a.engine, a.meta, a.metrics)

	g, gctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(gctx)
	defer cancel()

	if metricsAddr != "" {
		g.Go(func() error {
			return a.metrics.Serve(ctx, metricsAddr)
		})
	}
	g.Go(func() error {
		// stdin закрыт - гасим и метрики
		defer cancel()
		return srv.Serve(ctx)
	})

	return g.Wait()
}
