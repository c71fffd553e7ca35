package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"phdhunt-engine/internal/domain"
)

var ErrNotFound = errors.New("listing not found")

const (
	// Fixed width so stored timestamps order correctly as text.
	tsLayout       = "2006-01-02T15:04:05.000000000Z07:00"
	deadlineLayout = "2006-01-02"
	lookupChunk    = 400
)

const listingColumns = `source_url, title, institution, department, country, region, discipline,
  deadline, deadline_text, supervisor, funding_type, source, raw_snippet, first_seen_at, last_seen_at`

// Filter narrows List. Zero values match everything.
type Filter struct {
	Country     string
	Discipline  string
	FundingType domain.FundingType
	Region      domain.Region
	Source      domain.SourceName
	Query       string    // substring of title, institution or snippet
	SeenSince   time.Time // first_seen_at >= SeenSince
	Sort        string    // seen | deadline | title
	Limit       int
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(r rowScanner) (domain.Listing, error) {
	var (
		l                   domain.Listing
		region, funding     string
		source              string
		deadline            sql.NullString
		firstSeen, lastSeen string
	)
	if err := r.Scan(&l.SourceURL, &l.Title, &l.Institution, &l.Department, &l.Country, &region,
		&l.Discipline, &deadline, &l.DeadlineText, &l.Supervisor, &funding, &source, &l.RawSnippet,
		&firstSeen, &lastSeen); err != nil {
		return domain.Listing{}, err
	}
	l.Region = domain.Region(region)
	l.FundingType = domain.FundingType(funding)
	l.Source = domain.SourceName(source)
	if deadline.Valid && deadline.String != "" {
		if t, err := time.Parse(deadlineLayout, deadline.String); err == nil {
			l.Deadline = &t
		}
	}
	l.FirstSeenAt = parseTS(firstSeen)
	l.LastSeenAt = parseTS(lastSeen)
	return l, nil
}

func parseTS(s string) time.Time {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

// Lookup returns the stored listings for keys, keyed by source URL. Missing
// keys are simply absent from the result.
func (d *DB) Lookup(ctx context.Context, keys []string) (map[string]domain.Listing, error) {
	out := make(map[string]domain.Listing, len(keys))
	for start := 0; start < len(keys); start += lookupChunk {
		end := min(start+lookupChunk, len(keys))
		chunk := keys[start:end]

		args := make([]any, len(chunk))
		for i, k := range chunk {
			args[i] = k
		}
		query := fmt.Sprintf(`SELECT %s FROM listings WHERE source_url IN (%s);`,
			listingColumns, strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ","))

		rows, err := d.Pool.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("lookup listings: %w", err)
		}
		for rows.Next() {
			l, err := scanListing(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[l.SourceURL] = l
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *DB) Get(ctx context.Context, sourceURL string) (domain.Listing, error) {
	row := d.Pool.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM listings WHERE source_url = ?;`, listingColumns), sourceURL)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Listing{}, ErrNotFound
	}
	return l, err
}

func (d *DB) Count(ctx context.Context) (int, error) {
	var n int
	err := d.Pool.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings;`).Scan(&n)
	return n, err
}

func (f Filter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if v := strings.TrimSpace(f.Country); v != "" {
		conds = append(conds, "country = ? COLLATE NOCASE")
		args = append(args, v)
	}
	if v := strings.TrimSpace(f.Discipline); v != "" {
		conds = append(conds, "discipline LIKE ?")
		args = append(args, "%"+v+"%")
	}
	if f.FundingType != "" {
		conds = append(conds, "funding_type = ?")
		args = append(args, string(f.FundingType))
	}
	if f.Region != "" {
		conds = append(conds, "region = ?")
		args = append(args, string(f.Region))
	}
	if f.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, string(f.Source))
	}
	if v := strings.TrimSpace(f.Query); v != "" {
		conds = append(conds, "(title LIKE ? OR institution LIKE ? OR raw_snippet LIKE ?)")
		like := "%" + v + "%"
		args = append(args, like, like, like)
	}
	if !f.SeenSince.IsZero() {
		conds = append(conds, "first_seen_at >= ?")
		args = append(args, f.SeenSince.UTC().Format(tsLayout))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// List returns stored listings matching f, newest first by default.
func (d *DB) List(ctx context.Context, f Filter) ([]domain.Listing, error) {
	if f.Limit <= 0 || f.Limit > 5000 {
		f.Limit = 500
	}

	// whitelist sort columns
	order := map[string]string{
		"seen":     "first_seen_at DESC, source_url",
		"deadline": "deadline IS NULL, deadline ASC, source_url",
		"title":    "title COLLATE NOCASE ASC, source_url",
	}[f.Sort]
	if order == "" {
		order = "first_seen_at DESC, source_url"
	}

	where, args := f.where()
	query := fmt.Sprintf(`
SELECT %s
FROM listings
%s
ORDER BY %s
LIMIT ?;
`, listingColumns, where, order)

	rows, err := d.Pool.QueryContext(ctx, query, append(args, f.Limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// PruneStale deletes listings not seen since before.
func (d *DB) PruneStale(ctx context.Context, before time.Time) (deleted int64, err error) {
	res, err := d.Pool.ExecContext(ctx, `DELETE FROM listings WHERE last_seen_at < ?;`,
		before.UTC().Format(tsLayout))
	if err != nil {
		return 0, fmt.Errorf("prune listings: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
