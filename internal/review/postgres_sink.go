package review

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresSink stores results in a PostgreSQL table keyed by group id.
type PostgresSink struct {
	db    *sql.DB
	table string
}

// NewPostgresSink creates the results table if it does not exist.
func NewPostgresSink(ctx context.Context, db *sql.DB, table string) (*PostgresSink, error) {
	if table == "" {
		table = "group_validation"
	}
	s := &PostgresSink{db: db, table: pq.QuoteIdentifier(table)}

	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			group_id    INTEGER PRIMARY KEY,
			is_valid    BOOLEAN NOT NULL,
			flags       TEXT[] NOT NULL DEFAULT '{}',
			reviewer    TEXT NOT NULL DEFAULT '',
			session_id  TEXT NOT NULL DEFAULT '',
			reviewed_at TIMESTAMPTZ NOT NULL
		)
	`, s.table))
	if err != nil {
		return nil, fmt.Errorf("failed to create results table: %w", err)
	}
	return s, nil
}

// AppendOrReplace upserts the result for groupID.
func (s *PostgresSink) AppendOrReplace(ctx context.Context, groupID int, result Result) error {
	if err := validate(groupID, &result); err != nil {
		return err
	}
	flags := result.Flags
	if flags == nil {
		flags = []string{}
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (group_id, is_valid, flags, reviewer, session_id, reviewed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (group_id) DO UPDATE SET
			is_valid = EXCLUDED.is_valid,
			flags = EXCLUDED.flags,
			reviewer = EXCLUDED.reviewer,
			session_id = EXCLUDED.session_id,
			reviewed_at = EXCLUDED.reviewed_at
	`, s.table), result.GroupID, result.IsValid, pq.Array(flags), result.Reviewer, result.SessionID, result.ReviewedAt)
	if err != nil {
		return fmt.Errorf("failed to record result for group %d: %w", groupID, err)
	}
	return nil
}

// Results returns every stored result ordered by group id.
func (s *PostgresSink) Results(ctx context.Context) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT group_id, is_valid, flags, reviewer, session_id, reviewed_at
		FROM %s
		ORDER BY group_id
	`, s.table))
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.GroupID, &r.IsValid, pq.Array(&r.Flags), &r.Reviewer, &r.SessionID, &r.ReviewedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Close closes the underlying database.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
