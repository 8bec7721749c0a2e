package metadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
)

// Filter сужает выборку статистики; нулевые поля не применяются
type Filter struct {
	From       time.Time
	To         time.Time
	Label      string
	FromDomain string
	UnreadOnly bool
	Search     string
}

func (f Filter) apply(q squirrel.SelectBuilder) squirrel.SelectBuilder {
	if !f.From.IsZero() {
		q = q.Where(squirrel.GtOrEq{"date_timestamp": f.From.Unix()})
	}
	if !f.To.IsZero() {
		q = q.Where(squirrel.LtOrEq{"date_timestamp": f.To.Unix()})
	}
	if f.Label != "" {
		q = q.Where(likeExpr("label_ids", `"`+f.Label+`"`))
	}
	if f.FromDomain != "" {
		q = q.Where(squirrel.Eq{"from_domain": f.FromDomain})
	}
	if f.UnreadOnly {
		q = q.Where(squirrel.Eq{"is_unread": 1})
	}
	if f.Search != "" {
		q = q.Where(squirrel.Or{
			likeExpr("subject", f.Search),
			likeExpr("snippet", f.Search),
			likeExpr("from_email", f.Search),
		})
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likeExpr - подстрока без подстановочных символов LIKE
func likeExpr(column, substr string) squirrel.Sqlizer {
	return squirrel.Expr(column+` LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(substr)+"%")
}

// Summary - сводка по ящику
type Summary struct {
	Total         int
	Unread        int
	UniqueSenders int
	TopDomain     string
	EmailsPerDay  float64
}

// KeyCount - пара ключ/количество для рейтингов
type KeyCount struct {
	Key   string
	Count int
}

// Summary считает общую статистику
func (d *DB) Summary(ctx context.Context, f Filter) (*Summary, error) {
	s := &Summary{TopDomain: "N/A"}

	if err := d.scalar(ctx, f.apply(d.sb.Select("COUNT(*)").From("emails")), &s.Total); err != nil {
		return nil, err
	}
	if err := d.scalar(ctx, f.apply(d.sb.Select("COUNT(*)").From("emails")).Where(squirrel.Eq{"is_unread": 1}), &s.Unread); err != nil {
		return nil, err
	}
	if err := d.scalar(ctx, f.apply(d.sb.Select("COUNT(DISTINCT from_email)").From("emails")), &s.UniqueSenders); err != nil {
		return nil, err
	}

	domains, err := d.groupCount(ctx, "from_domain", f, 1, false)
	if err != nil {
		return nil, err
	}
	if len(domains) > 0 {
		s.TopDomain = domains[0].Key
	}

	var perDay sql.NullFloat64
	q := f.apply(d.sb.
		Select("COUNT(*) * 1.0 / ((MAX(date_timestamp) - MIN(date_timestamp)) / 86400.0 + 1)").
		From("emails"))
	if err := d.scalar(ctx, q, &perDay); err != nil {
		return nil, err
	}
	if perDay.Valid {
		s.EmailsPerDay = math.Round(perDay.Float64*10) / 10
	}

	return s, nil
}

// TopSenders - самые частые отправители, кроме собственных писем
func (d *DB) TopSenders(ctx context.Context, limit int, f Filter) ([]KeyCount, error) {
	return d.groupCount(ctx, "from_email", f, limit, true)
}

// TopDomains - самые частые домены отправителей, кроме собственных писем
func (d *DB) TopDomains(ctx context.Context, limit int, f Filter) ([]KeyCount, error) {
	return d.groupCount(ctx, "from_domain", f, limit, true)
}

// DailyVolume - количество писем по дням (UTC), по возрастанию даты
func (d *DB) DailyVolume(ctx context.Context, f Filter) ([]KeyCount, error) {
	q := f.apply(d.sb.Select("DATE(date) AS day", "COUNT(*) AS cnt").From("emails")).
		GroupBy("DATE(date)").
		OrderBy("day")
	return d.counts(ctx, q)
}

// HourCount - количество писем за час суток (UTC)
type HourCount struct {
	Hour  int
	Count int
}

// HourDistribution - письма по часам суток, только непустые часы по возрастанию
func (d *DB) HourDistribution(ctx context.Context, f Filter) ([]HourCount, error) {
	query, args, err := f.apply(d.sb.
		Select("CAST(strftime('%H', date) AS INTEGER) AS hour", "COUNT(*) AS cnt").
		From("emails")).
		GroupBy("hour").
		OrderBy("hour").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query hours: %w", err)
	}
	defer rows.Close()

	var result []HourCount
	for rows.Next() {
		var h HourCount
		if err := rows.Scan(&h.Hour, &h.Count); err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

// ThreadSummary - поток с датой последнего письма
type ThreadSummary struct {
	ThreadID     string
	LastDate     time.Time
	MessageCount int
	Subject      string // тема первого письма потока
}

// RecentThreads - потоки, отсортированные по последнему письму, свежие первыми
func (d *DB) RecentThreads(ctx context.Context, limit int, f Filter) ([]ThreadSummary, error) {
	q := f.apply(d.sb.
		Select(
			"thread_id",
			"MAX(date_timestamp) AS last_date",
			"COUNT(*) AS message_count",
			"(SELECT t0.subject FROM emails AS t0 WHERE t0.thread_id = emails.thread_id "+
				"ORDER BY t0.date_timestamp ASC LIMIT 1) AS first_subject",
		).
		From("emails")).
		GroupBy("thread_id").
		OrderBy("last_date DESC", "thread_id")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query threads: %w", err)
	}
	defer rows.Close()

	var result []ThreadSummary
	for rows.Next() {
		var (
			t       ThreadSummary
			last    int64
			subject sql.NullString
		)
		if err := rows.Scan(&t.ThreadID, &last, &t.MessageCount, &subject); err != nil {
			return nil, err
		}
		t.LastDate = time.Unix(last, 0).UTC()
		t.Subject = subject.String
		if t.Subject == "" {
			t.Subject = "No Subject"
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// LabelBreakdown - 10 самых частых меток
func (d *DB) LabelBreakdown(ctx context.Context, f Filter) ([]KeyCount, error) {
	query, args, err := f.apply(d.sb.Select("label_ids").From("emails")).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var labels []string
		if raw.Valid && raw.String != "" {
			if err := json.Unmarshal([]byte(raw.String), &labels); err != nil {
				return nil, fmt.Errorf("invalid label_ids: %w", err)
			}
		}
		for _, l := range labels {
			counts[l]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]KeyCount, 0, len(counts))
	for k, v := range counts {
		result = append(result, KeyCount{Key: k, Count: v})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Key < result[j].Key
	})
	if len(result) > 10 {
		result = result[:10]
	}
	return result, nil
}

func (d *DB) groupCount(ctx context.Context, column string, f Filter, limit int, excludeMine bool) ([]KeyCount, error) {
	q := f.apply(d.sb.Select(column, "COUNT(*) AS cnt").From("emails"))
	if excludeMine {
		q = q.Where(squirrel.Eq{"is_from_me": 0})
	}
	q = q.GroupBy(column).OrderBy("cnt DESC", column)
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return d.counts(ctx, q)
}

func (d *DB) counts(ctx context.Context, q squirrel.SelectBuilder) ([]KeyCount, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query counts: %w", err)
	}
	defer rows.Close()

	var result []KeyCount
	for rows.Next() {
		var c KeyCount
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (d *DB) scalar(ctx context.Context, q squirrel.SelectBuilder, dst any) error {
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(dst); err != nil {
		return fmt.Errorf("failed to query: %w", err)
	}
	return nil
}
