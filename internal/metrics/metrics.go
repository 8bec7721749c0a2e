// Package metrics собирает метрики индексации, поиска и инструментов агента
// и отдаёт их Prometheus на отдельном порту.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// DefaultAddr - адрес сервера метрик по умолчанию
	DefaultAddr = ":9090"

	namespace = "mailrag"
)

// Metrics - набор метрик приложения в собственном реестре
type Metrics struct {
	Registry *prometheus.Registry

	EmailsFetched    prometheus.Counter
	DocumentsCreated prometheus.Counter
	FragmentsStored  prometheus.Counter
	IndexDuration    prometheus.Histogram
	Queries          *prometheus.CounterVec
	QueryDuration    prometheus.Histogram
	ToolCalls        *prometheus.CounterVec
}

// New регистрирует метрики в новом реестре
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		Registry: reg,
		EmailsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_fetched_total",
			Help:      "Emails fetched from Gmail.",
		}),
		DocumentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_created_total",
			Help:      "Documents built from emails and attachments.",
		}),
		FragmentsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_stored_total",
			Help:      "Fragments written to the vector store.",
		}),
		IndexDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_duration_seconds",
			Help:      "Duration of a full indexing run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "RAG queries by outcome.",
		}, []string{"status"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Duration of RAG queries including the LLM call.",
			Buckets:   prometheus.DefBuckets,
		}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Agent tool calls by tool and outcome.",
		}, []string{"tool", "status"}),
	}

	reg.MustRegister(
		m.EmailsFetched,
		m.DocumentsCreated,
		m.FragmentsStored,
		m.IndexDuration,
		m.Queries,
		m.QueryDuration,
		m.ToolCalls,
	)
	return m
}

// Status - метка результата для счётчиков
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler - /metrics и /healthz
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Serve поднимает сервер метрик и останавливает его при отмене ctx
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("📈 Metrics server started", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
