package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresStore persists tables as ordered cell rows in a single relation:
//
//	CREATE TABLE IF NOT EXISTS tabular_rows (
//	    table_name TEXT   NOT NULL,
//	    position   INT    NOT NULL,
//	    cells      TEXT[] NOT NULL,
//	    PRIMARY KEY (table_name, position)
//	);
//
// Position 0 is the header row. Mutations follow the contract's two patterns
// only: full rewrite inside a transaction, or append after a header check.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an existing database handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the backing relation when absent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tabular_rows (
			table_name TEXT   NOT NULL,
			position   INT    NOT NULL,
			cells      TEXT[] NOT NULL,
			PRIMARY KEY (table_name, position)
		)`)
	if err != nil {
		return fmt.Errorf("migrate tabular_rows: %w", err)
	}
	return nil
}

func (s *PostgresStore) Read(ctx context.Context, table string) (Table, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cells FROM tabular_rows WHERE table_name = $1 ORDER BY position`, table)
	if err != nil {
		return Table{}, fmt.Errorf("read table %s: %w", table, err)
	}
	defer rows.Close()

	var all [][]string
	for rows.Next() {
		var cells pq.StringArray
		if err := rows.Scan(&cells); err != nil {
			return Table{}, fmt.Errorf("scan table %s: %w", table, err)
		}
		all = append(all, []string(cells))
	}
	if err := rows.Err(); err != nil {
		return Table{}, fmt.Errorf("iterate table %s: %w", table, err)
	}

	if len(all) < 2 {
		return Table{}, nil
	}
	return Table{Header: all[0], Rows: all[1:]}, nil
}

func (s *PostgresStore) Write(ctx context.Context, table string, data Table) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write %s: %w", table, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := rewriteTable(ctx, tx, table, data); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit write %s: %w", table, err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, table string, data Table) error {
	if len(data.Rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append %s: %w", table, err)
	}
	defer tx.Rollback() //nolint:errcheck

	var header pq.StringArray
	var maxPos int
	err = tx.QueryRowContext(ctx,
		`SELECT cells, (SELECT MAX(position) FROM tabular_rows WHERE table_name = $1)
		   FROM tabular_rows WHERE table_name = $1 AND position = 0`, table).
		Scan(&header, &maxPos)

	if err != nil || !sameHeader([]string(header), data.Header) {
		// New table or header drift: behave like Write.
		if err := rewriteTable(ctx, tx, table, data); err != nil {
			return err
		}
	} else {
		for i, row := range data.Rows {
			if err := insertRow(ctx, tx, table, maxPos+1+i, row); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append %s: %w", table, err)
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, table string, data Table, keyColumns []string) error {
	existing, err := s.Read(ctx, table)
	if err != nil {
		return err
	}

	merged := data
	if !existing.Empty() {
		merged = mergeUpsert(existing, data, keyColumns)
	}
	return s.Write(ctx, table, merged)
}

func rewriteTable(ctx context.Context, tx *sqlx.Tx, table string, data Table) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tabular_rows WHERE table_name = $1`, table); err != nil {
		return fmt.Errorf("clear table %s: %w", table, err)
	}
	if err := insertRow(ctx, tx, table, 0, data.Header); err != nil {
		return err
	}
	for i, row := range data.Rows {
		if err := insertRow(ctx, tx, table, i+1, row); err != nil {
			return err
		}
	}
	return nil
}

func insertRow(ctx context.Context, tx *sqlx.Tx, table string, position int, cells []string) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tabular_rows (table_name, position, cells) VALUES ($1, $2, $3)`,
		table, position, pq.Array(cells)); err != nil {
		return fmt.Errorf("insert %s row %d: %w", table, position, err)
	}
	return nil
}
