package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"

	"mailrag/internal/mail"
	"mailrag/internal/metadb"
	"mailrag/internal/rag"
)

const (
	defaultK          = 5
	maxK              = 50
	searchSnippetLen  = 300
	triageSnippetLen  = 200
	triageScanLimit   = 50
	draftContextLen   = 1000
	draftMaxTokens    = 300
	statsTopN         = 10
	draftWarning      = "DRAFT ONLY - Review before sending. Never auto-send."
	threadNotFoundMsg = "Thread not found"
)

// Признаки того, что письмо ждёт ответа
var needsReplyKeywords = []string{
	"please confirm", "let me know", "waiting for", "can you",
	"could you", "would you", "action required", "need your",
	"awaiting", "please reply", "please respond", "get back to me",
	"follow up", "asap", "urgent", "time-sensitive",
}

var toneInstructions = map[string]string{
	"concise":      "Write a brief, to-the-point reply (2-3 sentences max).",
	"friendly":     "Write a warm, friendly reply that builds rapport.",
	"formal":       "Write a formal, professional business reply.",
	"professional": "Write a professional, courteous reply.",
}

type emailCitation struct {
	Subject   string `json:"subject"`
	Sender    string `json:"sender"`
	Date      string `json:"date"`
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
	Snippet   string `json:"snippet"`
}

func (s *Server) handleSearchEmails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	query := getString(args, "query", "")
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	sender := strings.ToLower(getString(args, "sender", ""))
	k := getInt(args, "k", defaultK)
	if k < 1 || k > maxK {
		return mcp.NewToolResultError(fmt.Sprintf("k must be between 1 and %d", maxK)), nil
	}

	// С запасом, чтобы после фильтра по отправителю осталось k
	sources, err := s.engine.Search(ctx, query, k*2)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Search failed: %v", err)), nil
	}

	results := make([]emailCitation, 0, k)
	for _, src := range sources {
		if sender != "" && !strings.Contains(strings.ToLower(src.Sender), sender) {
			continue
		}
		results = append(results, emailCitation{
			Subject:   src.Subject,
			Sender:    src.Sender,
			Date:      src.Date,
			MessageID: src.MessageID,
			ThreadID:  src.ThreadID,
			Snippet:   src.Snippet(searchSnippetLen),
		})
		if len(results) == k {
			break
		}
	}

	return jsonResult(map[string]any{
		"results": results,
		"count":   len(results),
		"query":   query,
	})
}

type threadEmail struct {
	Subject   string `json:"subject"`
	Sender    string `json:"sender"`
	Date      string `json:"date"`
	MessageID string `json:"message_id"`
	Snippet   string `json:"snippet"`
	IsUnread  bool   `json:"is_unread"`
	IsStarred bool   `json:"is_starred"`
}

func (s *Server) handleGetThread(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	threadID := getString(request.GetArguments(), "thread_id", "")
	if threadID == "" {
		return mcp.NewToolResultError("thread_id is required"), nil
	}

	thread, err := s.mailbox.Thread(ctx, threadID)
	if errors.Is(err, metadb.ErrNotFound) {
		return jsonResult(map[string]any{
			"thread_id": threadID,
			"emails":    []threadEmail{},
			"error":     threadNotFoundMsg,
		})
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get thread: %v", err)), nil
	}

	emails := make([]threadEmail, 0, len(thread))
	for _, e := range thread {
		emails = append(emails, threadEmail{
			Subject:   e.Subject,
			Sender:    e.FromEmail,
			Date:      e.Date.Format(time.RFC3339),
			MessageID: e.MessageID,
			Snippet:   e.Snippet,
			IsUnread:  e.IsUnread,
			IsStarred: e.IsStarred,
		})
	}

	return jsonResult(map[string]any{
		"thread_id": threadID,
		"emails":    emails,
		"count":     len(emails),
	})
}

type triageItem struct {
	Subject       string   `json:"subject"`
	Sender        string   `json:"sender"`
	Date          string   `json:"date"`
	MessageID     string   `json:"message_id"`
	ThreadID      string   `json:"thread_id"`
	UrgencyScore  int      `json:"urgency_score"`
	KeywordsFound []string `json:"keywords_found"`
	Snippet       string   `json:"snippet"`
}

func (s *Server) handleTriageRecent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	days := getInt(args, "days", 1)
	if days < 1 {
		return mcp.NewToolResultError("days must be positive"), nil
	}
	sender := strings.ToLower(getString(args, "sender", ""))

	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	recent, err := s.mailbox.Recent(ctx, since, false, triageScanLimit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load recent emails: %v", err)), nil
	}

	items := make([]triageItem, 0)
	for _, e := range recent {
		if e.IsFromMe {
			continue
		}
		if sender != "" && !strings.Contains(e.FromEmail, sender) {
			continue
		}

		matches := matchKeywords(e.Subject + "\n" + e.Snippet)
		if len(matches) == 0 {
			continue
		}

		score := len(matches)
		if e.IsUnread {
			score++
		}
		items = append(items, triageItem{
			Subject:       e.Subject,
			Sender:        e.FromEmail,
			Date:          e.Date.Format(time.RFC3339),
			MessageID:     e.MessageID,
			ThreadID:      e.ThreadID,
			UrgencyScore:  score,
			KeywordsFound: matches[:min(3, len(matches))],
			Snippet:       snippet(e.Snippet, triageSnippetLen),
		})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].UrgencyScore > items[j].UrgencyScore })

	return jsonResult(map[string]any{
		"needs_reply":   items,
		"count":         len(items),
		"days_searched": days,
	})
}

func (s *Server) handleDraftReply(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	threadID := getString(args, "thread_id", "")
	if threadID == "" {
		return mcp.NewToolResultError("thread_id is required"), nil
	}
	tone := getString(args, "tone", "professional")
	instruction, ok := toneInstructions[tone]
	if !ok {
		tone = "professional"
		instruction = toneInstructions[tone]
	}

	thread, err := s.mailbox.Thread(ctx, threadID)
	if errors.Is(err, metadb.ErrNotFound) {
		return jsonResult(map[string]any{
			"thread_id": threadID,
			"draft":     nil,
			"error":     threadNotFoundMsg,
		})
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get thread: %v", err)), nil
	}

	latest := thread[len(thread)-1]
	body := s.messageContent(ctx, latest)

	prompt := fmt.Sprintf("%s\n\nOriginal email:\nSubject: %s\nFrom: %s\n\n%s\n\nDraft reply:",
		instruction, latest.Subject, latest.FromEmail, snippet(body, draftContextLen))

	draft, err := s.engine.Complete(ctx, prompt, draftMaxTokens)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to generate draft: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"thread_id":        threadID,
		"tone":             tone,
		"draft":            draft,
		"original_subject": latest.Subject,
		"original_sender":  latest.FromEmail,
		"warning":          draftWarning,
	})
}

// messageContent собирает текст письма из его фрагментов; без них - сниппет
func (s *Server) messageContent(ctx context.Context, e metadb.Email) string {
	sources, err := s.engine.SearchWhere(ctx, e.Subject, 10, map[string]string{mail.MetaEmailID: e.MessageID})
	if err != nil || len(sources) == 0 {
		return e.Snippet
	}

	parts := make([]string, 0, len(sources))
	for _, src := range sources {
		parts = append(parts, strings.TrimSpace(src.Content))
	}
	return strings.Join(parts, "\n")
}

func (s *Server) handleMailboxStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := s.mailbox.Summary(ctx, metadb.Filter{})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to compute stats: %v", err)), nil
	}
	senders, err := s.mailbox.TopSenders(ctx, statsTopN, metadb.Filter{})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to compute stats: %v", err)), nil
	}
	domains, err := s.mailbox.TopDomains(ctx, statsTopN, metadb.Filter{})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to compute stats: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"total":          summary.Total,
		"unread":         summary.Unread,
		"unique_senders": summary.UniqueSenders,
		"top_domain":     summary.TopDomain,
		"emails_per_day": summary.EmailsPerDay,
		"top_senders":    keyCounts(senders, "sender"),
		"top_domains":    keyCounts(domains, "domain"),
	})
}

func matchKeywords(text string) []string {
	text = strings.ToLower(text)
	var found []string
	for _, kw := range needsReplyKeywords {
		if strings.Contains(text, kw) {
			found = append(found, kw)
		}
	}
	return found
}

func keyCounts(counts []metadb.KeyCount, key string) []map[string]any {
	out := make([]map[string]any, 0, len(counts))
	for _, c := range counts {
		out = append(out, map[string]any{key: c.Key, "count": c.Count})
	}
	return out
}

func snippet(s string, n int) string {
	return rag.Source{Content: s}.Snippet(n)
}

func getString(args map[string]any, key, def string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return def
	}
	s := strings.TrimSpace(cast.ToString(v))
	if s == "" {
		return def
	}
	return s
}

func getInt(args map[string]any, key string, def int) int {
	v, ok := args[key]
	if !ok || v == nil {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return n
}
