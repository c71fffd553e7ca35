package store

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 1

var schemaV1 = []string{`
CREATE TABLE IF NOT EXISTS listings (
  source_url TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  institution TEXT NOT NULL DEFAULT '',
  department TEXT NOT NULL DEFAULT '',
  country TEXT NOT NULL DEFAULT '',
  region TEXT NOT NULL DEFAULT '',
  discipline TEXT NOT NULL DEFAULT '',
  deadline TEXT,
  deadline_text TEXT NOT NULL DEFAULT '',
  supervisor TEXT NOT NULL DEFAULT '',
  funding_type TEXT NOT NULL DEFAULT 'unknown',
  source TEXT NOT NULL,
  raw_snippet TEXT NOT NULL DEFAULT '',
  first_seen_at TEXT NOT NULL,
  last_seen_at TEXT NOT NULL
);`,
	`CREATE INDEX IF NOT EXISTS idx_listings_last_seen ON listings(last_seen_at);`,
	`CREATE INDEX IF NOT EXISTS idx_listings_first_seen ON listings(first_seen_at);`,
	`CREATE INDEX IF NOT EXISTS idx_listings_country ON listings(country);`,
	`CREATE INDEX IF NOT EXISTS idx_listings_region_funding ON listings(region, funding_type);`,
}

// Migrate brings the schema up to date, tracked with PRAGMA user_version.
func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= schemaVersion {
		return tx.Commit()
	}

	for _, stmt := range schemaV1 {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	if !columnExists(tx, "listings", "department") {
		if _, err := tx.Exec(`ALTER TABLE listings ADD COLUMN department TEXT NOT NULL DEFAULT '';`); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d;`, schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func columnExists(q interface {
	QueryRow(query string, args ...any) *sql.Row
}, table, col string) bool {
	query := fmt.Sprintf(`
SELECT 1
FROM pragma_table_info('%s')
WHERE name = ?
LIMIT 1;
`, table)

	var one int
	err := q.QueryRow(query, col).Scan(&one)
	return err == nil
}
