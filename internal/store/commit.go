package store

import (
	"context"
	"database/sql"
	"fmt"

	"phdhunt-engine/internal/dedupe"
	"phdhunt-engine/internal/domain"
)

// CommitError means a plan could not be written. The transaction was rolled
// back, so nothing from the plan is in the store.
type CommitError struct {
	Op  string
	Err error
}

func (e *CommitError) Error() string { return fmt.Sprintf("commit %s: %v", e.Op, e.Err) }
func (e *CommitError) Unwrap() error { return e.Err }

type CommitResult struct {
	Inserted int
	Updated  int
}

const upsertListing = `
INSERT INTO listings (` + listingColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(source_url) DO UPDATE SET
  title = excluded.title,
  institution = excluded.institution,
  department = excluded.department,
  country = excluded.country,
  region = excluded.region,
  discipline = excluded.discipline,
  deadline = excluded.deadline,
  deadline_text = excluded.deadline_text,
  supervisor = excluded.supervisor,
  funding_type = excluded.funding_type,
  source = excluded.source,
  raw_snippet = excluded.raw_snippet,
  last_seen_at = excluded.last_seen_at;`

func listingArgs(l domain.Listing) []any {
	var deadline any
	if l.Deadline != nil {
		deadline = l.Deadline.UTC().Format(deadlineLayout)
	}
	return []any{
		l.SourceURL, l.Title, l.Institution, l.Department, l.Country, string(l.Region),
		l.Discipline, deadline, l.DeadlineText, l.Supervisor, string(l.FundingType),
		string(l.Source), l.RawSnippet,
		l.FirstSeenAt.UTC().Format(tsLayout), l.LastSeenAt.UTC().Format(tsLayout),
	}
}

// Commit writes every insert and update of plan in one transaction. Either
// the whole plan lands or none of it does.
func (d *DB) Commit(ctx context.Context, plan dedupe.Plan) (CommitResult, error) {
	if plan.Len() == 0 {
		return CommitResult{}, nil
	}

	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return CommitResult{}, &CommitError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertListing)
	if err != nil {
		return CommitResult{}, &CommitError{Op: "prepare", Err: err}
	}
	defer stmt.Close()

	if err := execAll(ctx, stmt, plan.Insert); err != nil {
		return CommitResult{}, &CommitError{Op: "insert", Err: err}
	}
	if err := execAll(ctx, stmt, plan.Update); err != nil {
		return CommitResult{}, &CommitError{Op: "update", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return CommitResult{}, &CommitError{Op: "commit", Err: err}
	}
	return CommitResult{Inserted: len(plan.Insert), Updated: len(plan.Update)}, nil
}

func execAll(ctx context.Context, stmt *sql.Stmt, listings []domain.Listing) error {
	for _, l := range listings {
		if _, err := stmt.ExecContext(ctx, listingArgs(l)...); err != nil {
			return fmt.Errorf("%s: %w", l.SourceURL, err)
		}
	}
	return nil
}
