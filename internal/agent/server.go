// Package agent отдаёт поиск, потоки, триаж и черновики ответов
// как инструменты MCP-сервера.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"mailrag/internal/metadb"
	"mailrag/internal/metrics"
	"mailrag/internal/rag"
)

const (
	ServerName    = "mailrag"
	ServerVersion = "1.0.0"
)

// Engine - поиск и генерация (rag.Engine)
type Engine interface {
	Search(ctx context.Context, query string, k int) ([]rag.Source, error)
	SearchWhere(ctx context.Context, query string, k int, where map[string]string) ([]rag.Source, error)
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Mailbox - метаданные писем (metadb.DB)
type Mailbox interface {
	Thread(ctx context.Context, threadID string) ([]metadb.Email, error)
	Recent(ctx context.Context, since time.Time, unreadOnly bool, limit int) ([]metadb.Email, error)
	Summary(ctx context.Context, f metadb.Filter) (*metadb.Summary, error)
	TopSenders(ctx context.Context, limit int, f metadb.Filter) ([]metadb.KeyCount, error)
	TopDomains(ctx context.Context, limit int, f metadb.Filter) ([]metadb.KeyCount, error)
}

type toolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Server - MCP-сервер с инструментами почты
type Server struct {
	mcp     *server.MCPServer
	engine  Engine
	mailbox Mailbox
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewServer регистрирует инструменты; m может быть nil
func NewServer(engine Engine, mailbox Mailbox, m *metrics.Metrics) *Server {
	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		engine:  engine,
		mailbox: mailbox,
		metrics: m,
		now:     time.Now,
	}
	s.registerTools()
	return s
}

// MCP - нижележащий сервер mcp-go
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Serve обслуживает MCP по stdio до закрытия ввода или отмены ctx
func (s *Server) Serve(ctx context.Context) error {
	return s.Listen(ctx, os.Stdin, os.Stdout)
}

// Listen обслуживает MCP поверх произвольных потоков
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	log.Info("🔌 MCP server listening on stdio", "name", ServerName)
	err := server.NewStdioServer(s.mcp).Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) registerTools() {
	s.mcp.AddTool(searchEmailsTool(), s.instrument("search_emails", s.handleSearchEmails))
	s.mcp.AddTool(getThreadTool(), s.instrument("get_thread", s.handleGetThread))
	s.mcp.AddTool(triageRecentTool(), s.instrument("triage_recent", s.handleTriageRecent))
	s.mcp.AddTool(draftReplyTool(), s.instrument("draft_reply", s.handleDraftReply))
	s.mcp.AddTool(mailboxStatsTool(), s.instrument("mailbox_stats", s.handleMailboxStats))
}

// instrument считает вызовы инструмента и логирует ошибки
func (s *Server) instrument(name string, h toolHandler) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := h(ctx, request)

		status := "ok"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}
		if s.metrics != nil {
			s.metrics.ToolCalls.WithLabelValues(name, status).Inc()
		}
		log.Debug("tool call", "tool", name, "status", status, "duration", time.Since(start))
		return result, err
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("failed to encode result: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
