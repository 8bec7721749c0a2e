package mail

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	// MaxAttachmentSize - вложения больше 25MB не скачиваются
	MaxAttachmentSize = 25 * 1024 * 1024

	maxPageSize = 100
)

// Client - обёртка над Gmail Users.Messages
type Client struct {
	svc *gmail.UsersMessagesService
}

// FetchOptions задаёт выборку писем
type FetchOptions struct {
	Query          string // поисковый запрос Gmail, например "newer_than:30d"
	MaxResults     int
	PDFAttachments bool // скачивать PDF-вложения
	Concurrency    int
}

// NewClient создаёт клиента с OAuth2 токеном
func NewClient(ctx context.Context, ts oauth2.TokenSource) (*Client, error) {
	return NewClientWithOptions(ctx, option.WithTokenSource(ts))
}

// NewClientWithOptions создаёт клиента с произвольными опциями (endpoint, http client)
func NewClientWithOptions(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return &Client{svc: svc.Users.Messages}, nil
}

// ListMessageIDs возвращает до maxResults идентификаторов писем, по страницам
func (c *Client) ListMessageIDs(ctx context.Context, query string, maxResults int) ([]string, error) {
	var ids []string
	pageToken := ""

	for len(ids) < maxResults {
		pageSize := maxResults - len(ids)
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}

		req := c.svc.List("me").MaxResults(int64(pageSize)).Context(ctx)
		if query != "" {
			req = req.Q(query)
		}
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}

		res, err := req.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}

		for _, m := range res.Messages {
			ids = append(ids, m.Id)
		}

		if res.NextPageToken == "" {
			break
		}
		pageToken = res.NextPageToken
	}

	if len(ids) > maxResults {
		ids = ids[:maxResults]
	}
	return ids, nil
}

// GetMessage получает и разбирает полное письмо
func (c *Client) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	m, err := c.svc.Get("me", messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}
	return ParseMessage(m), nil
}

// Attachment скачивает содержимое вложения
func (c *Client) Attachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	if messageID == "" {
		return nil, fmt.Errorf("messageID is required")
	}
	if attachmentID == "" {
		return nil, fmt.Errorf("attachmentID is required")
	}

	att, err := c.svc.Attachments.Get("me", messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment %s: %w", attachmentID, err)
	}
	if att.Size > MaxAttachmentSize {
		return nil, fmt.Errorf("attachment size %d exceeds maximum size %d", att.Size, MaxAttachmentSize)
	}

	data, err := decodeBase64(att.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode attachment data: %w", err)
	}
	return data, nil
}

// FetchMessages получает письма параллельно, сохраняя порядок списка.
// Ошибка отдельного письма логируется и письмо пропускается.
func (c *Client) FetchMessages(ctx context.Context, opts FetchOptions) ([]*Message, error) {
	ids, err := c.ListMessageIDs(ctx, opts.Query, opts.MaxResults)
	if err != nil {
		return nil, err
	}
	log.Info("📬 Fetching emails", "count", len(ids))

	results := make([]*Message, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Concurrency, 1))

	for i, id := range ids {
		g.Go(func() error {
			msg, err := c.GetMessage(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn("skipping message", "id", id, "err", err)
				return nil
			}

			if opts.PDFAttachments {
				c.downloadPDFs(gctx, msg)
			}

			results[i] = msg
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	messages := make([]*Message, 0, len(results))
	for _, m := range results {
		if m != nil {
			messages = append(messages, m)
		}
	}

	log.Info("✅ Fetched emails", "count", len(messages), "skipped", len(ids)-len(messages))
	return messages, nil
}

func (c *Client) downloadPDFs(ctx context.Context, msg *Message) {
	for i := range msg.Attachments {
		att := &msg.Attachments[i]
		if !att.IsPDF() || att.Size > MaxAttachmentSize {
			continue
		}
		data, err := c.Attachment(ctx, msg.ID, att.ID)
		if err != nil {
			log.Warn("skipping attachment", "message", msg.ID, "file", att.Filename, "err", err)
			continue
		}
		att.Data = data
	}
}
