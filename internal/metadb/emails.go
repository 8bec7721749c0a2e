package metadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/charmbracelet/log"

	"mailrag/internal/mail"
)

// Email - строка таблицы emails
type Email struct {
	MessageID      string
	ThreadID       string
	Date           time.Time
	FromEmail      string
	FromDomain     string
	ToEmails       []string
	Subject        string
	Snippet        string
	Labels         []string
	IsUnread       bool
	IsStarred      bool
	HasAttachments bool
	IsFromMe       bool
	IndexedAt      time.Time
}

var emailColumns = []string{
	"message_id", "thread_id", "date", "date_timestamp",
	"from_email", "from_domain", "to_emails", "subject", "snippet",
	"label_ids", "is_unread", "is_starred", "has_attachments",
	"is_from_me", "indexed_at",
}

const upsertSuffix = `ON CONFLICT(message_id) DO UPDATE SET
    thread_id = excluded.thread_id,
    date = excluded.date,
    date_timestamp = excluded.date_timestamp,
    from_email = excluded.from_email,
    from_domain = excluded.from_domain,
    to_emails = excluded.to_emails,
    subject = excluded.subject,
    snippet = excluded.snippet,
    label_ids = excluded.label_ids,
    is_unread = excluded.is_unread,
    is_starred = excluded.is_starred,
    has_attachments = excluded.has_attachments,
    is_from_me = excluded.is_from_me,
    indexed_at = excluded.indexed_at`

// DetectMyEmail берёт адрес отправителя первого письма с меткой SENT
func DetectMyEmail(msgs []*mail.Message) string {
	for _, m := range msgs {
		if m.HasLabel("SENT") {
			email, _ := ParseAddress(m.From)
			return email
		}
	}
	return ""
}

// NewEmail переводит письмо в строку таблицы
func NewEmail(m *mail.Message, myEmail string, indexedAt time.Time) Email {
	fromEmail, fromDomain := ParseAddress(m.From)

	subject := m.Subject
	if subject == "" {
		subject = "No Subject"
	}
	threadID := m.ThreadID
	if threadID == "" {
		threadID = m.ID
	}
	labels := m.Labels
	if labels == nil {
		labels = []string{}
	}
	to := ParseAddressList(m.To)
	if to == nil {
		to = []string{}
	}

	return Email{
		MessageID:      m.ID,
		ThreadID:       threadID,
		Date:           ParseDate(m.Date, func() time.Time { return indexedAt }),
		FromEmail:      fromEmail,
		FromDomain:     fromDomain,
		ToEmails:       to,
		Subject:        subject,
		Snippet:        m.Snippet,
		Labels:         labels,
		IsUnread:       m.HasLabel("UNREAD"),
		IsStarred:      m.HasLabel("STARRED"),
		HasAttachments: m.HasAttachments,
		IsFromMe:       myEmail != "" && fromEmail == myEmail,
		IndexedAt:      indexedAt.UTC(),
	}
}

// UpsertEmails сохраняет метаданные писем; myEmail пустой - определяется по SENT.
// Возвращает число новых и обновлённых строк.
func (d *DB) UpsertEmails(ctx context.Context, msgs []*mail.Message, myEmail string) (inserted, updated int, err error) {
	if myEmail == "" {
		myEmail = DetectMyEmail(msgs)
	}
	now := time.Now()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, m := range msgs {
		e := NewEmail(m, myEmail, now)

		var exists int
		if err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM emails WHERE message_id = ?", e.MessageID).Scan(&exists); err != nil {
			return 0, 0, fmt.Errorf("failed to check email %s: %w", e.MessageID, err)
		}

		query, args, buildErr := d.upsertQuery(e)
		if buildErr != nil {
			err = buildErr
			return 0, 0, err
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return 0, 0, fmt.Errorf("failed to upsert email %s: %w", e.MessageID, err)
		}

		if exists > 0 {
			updated++
		} else {
			inserted++
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit emails: %w", err)
	}

	log.Info("✓ Exported to SQLite", "new", inserted, "updated", updated)
	return inserted, updated, nil
}

func (d *DB) upsertQuery(e Email) (string, []any, error) {
	to, err := json.Marshal(e.ToEmails)
	if err != nil {
		return "", nil, err
	}
	labels, err := json.Marshal(e.Labels)
	if err != nil {
		return "", nil, err
	}

	return d.sb.
		Insert("emails").
		Columns(emailColumns...).
		Values(
			e.MessageID,
			e.ThreadID,
			e.Date.Format(time.RFC3339),
			e.Date.Unix(),
			e.FromEmail,
			e.FromDomain,
			string(to),
			e.Subject,
			e.Snippet,
			string(labels),
			boolInt(e.IsUnread),
			boolInt(e.IsStarred),
			boolInt(e.HasAttachments),
			boolInt(e.IsFromMe),
			e.IndexedAt.Format(time.RFC3339),
		).
		Suffix(upsertSuffix).
		ToSql()
}

// Get возвращает письмо по идентификатору
func (d *DB) Get(ctx context.Context, messageID string) (*Email, error) {
	emails, err := d.selectEmails(ctx, d.selectBuilder().Where(squirrel.Eq{"message_id": messageID}))
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return nil, fmt.Errorf("email %s: %w", messageID, ErrNotFound)
	}
	return &emails[0], nil
}

// Thread возвращает письма потока в хронологическом порядке
func (d *DB) Thread(ctx context.Context, threadID string) ([]Email, error) {
	emails, err := d.selectEmails(ctx, d.selectBuilder().
		Where(squirrel.Eq{"thread_id": threadID}).
		OrderBy("date_timestamp ASC", "message_id ASC"))
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return nil, fmt.Errorf("thread %s: %w", threadID, ErrNotFound)
	}
	return emails, nil
}

// Recent возвращает письма новее since, свежие первыми
func (d *DB) Recent(ctx context.Context, since time.Time, unreadOnly bool, limit int) ([]Email, error) {
	q := d.selectBuilder().
		Where(squirrel.GtOrEq{"date_timestamp": since.Unix()}).
		OrderBy("date_timestamp DESC")
	if unreadOnly {
		q = q.Where(squirrel.Eq{"is_unread": 1})
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return d.selectEmails(ctx, q)
}

// Count - число писем в базе
func (d *DB) Count(ctx context.Context) (int, error) {
	query, args, err := d.sb.Select("COUNT(*)").From("emails").ToSql()
	if err != nil {
		return 0, err
	}

	var n int
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count emails: %w", err)
	}
	return n, nil
}

func (d *DB) selectBuilder() squirrel.SelectBuilder {
	return d.sb.Select(emailColumns...).From("emails")
}

func (d *DB) selectEmails(ctx context.Context, q squirrel.SelectBuilder) ([]Email, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query emails: %w", err)
	}
	defer rows.Close()

	var emails []Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

func scanEmail(rows *sql.Rows) (Email, error) {
	var (
		e                               Email
		date, indexedAt                 string
		ts                              int64
		to, labels                      sql.NullString
		subject, snippet                sql.NullString
		unread, starred, attach, fromMe int
	)

	if err := rows.Scan(
		&e.MessageID, &e.ThreadID, &date, &ts,
		&e.FromEmail, &e.FromDomain, &to, &subject, &snippet,
		&labels, &unread, &starred, &attach,
		&fromMe, &indexedAt,
	); err != nil {
		return Email{}, fmt.Errorf("failed to scan email: %w", err)
	}

	e.Date = time.Unix(ts, 0).UTC()
	e.IndexedAt, _ = time.Parse(time.RFC3339, indexedAt)
	e.Subject = subject.String
	e.Snippet = snippet.String
	e.IsUnread = unread != 0
	e.IsStarred = starred != 0
	e.HasAttachments = attach != 0
	e.IsFromMe = fromMe != 0

	if err := decodeList(to, &e.ToEmails); err != nil {
		return Email{}, err
	}
	if err := decodeList(labels, &e.Labels); err != nil {
		return Email{}, err
	}
	return e, nil
}

func decodeList(s sql.NullString, dst *[]string) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s.String), dst); err != nil {
		return fmt.Errorf("invalid list column: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// IsNotFound - удобная проверка для вызывающих
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
