package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgTable stores worksheet rows in postgres. Row order is the BIGSERIAL id,
// and serial numbers come from a sequence, so concurrent submitters never
// share a serial.
type PgTable struct {
	db        *pgxpool.Pool
	worksheet string
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS checkin_rows (
    id         BIGSERIAL PRIMARY KEY,
    worksheet  TEXT        NOT NULL,
    is_header  BOOLEAN     NOT NULL DEFAULT FALSE,
    cells      TEXT[]      NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS checkin_rows_worksheet_idx ON checkin_rows (worksheet, is_header, id);
CREATE SEQUENCE IF NOT EXISTS checkin_serial_seq;
`

func NewPgTable(ctx context.Context, db *pgxpool.Pool, worksheet string) (*PgTable, error) {
	if _, err := db.Exec(ctx, pgSchema); err != nil {
		return nil, fmt.Errorf("could not prepare checkin_rows: %v", err)
	}
	return &PgTable{db: db, worksheet: worksheet}, nil
}

func (t *PgTable) EnsureWorksheet(ctx context.Context, header []string) error {
	query := `
        INSERT INTO checkin_rows (worksheet, is_header, cells)
        SELECT $1, TRUE, $2
        WHERE NOT EXISTS (SELECT 1 FROM checkin_rows WHERE worksheet = $1);
    `
	if _, err := t.db.Exec(ctx, query, t.worksheet, header); err != nil {
		return fmt.Errorf("could not seed worksheet %s: %w", t.worksheet, err)
	}
	return nil
}

func (t *PgTable) SetHeader(ctx context.Context, header []string) error {
	tag, err := t.db.Exec(ctx,
		`UPDATE checkin_rows SET cells = $2 WHERE worksheet = $1 AND is_header`,
		t.worksheet, header)
	if err != nil {
		return fmt.Errorf("could not update header: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	_, err = t.db.Exec(ctx,
		`INSERT INTO checkin_rows (worksheet, is_header, cells) VALUES ($1, TRUE, $2)`,
		t.worksheet, header)
	if err != nil {
		return fmt.Errorf("could not insert header: %w", err)
	}
	return nil
}

func (t *PgTable) AppendRow(ctx context.Context, row []string) error {
	_, err := t.db.Exec(ctx,
		`INSERT INTO checkin_rows (worksheet, cells) VALUES ($1, $2)`,
		t.worksheet, row)
	if err != nil {
		return fmt.Errorf("could not append row: %w", err)
	}
	return nil
}

func (t *PgTable) GetAllValues(ctx context.Context) ([][]string, error) {
	rows, err := t.db.Query(ctx, `
        SELECT cells
        FROM checkin_rows
        WHERE worksheet = $1
        ORDER BY is_header DESC, id
    `, t.worksheet)
	if err != nil {
		return nil, fmt.Errorf("could not read rows: %w", err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var cells []string
		if err := rows.Scan(&cells); err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}

func (t *PgTable) NextSerial(ctx context.Context) (int, error) {
	var n int64
	if err := t.db.QueryRow(ctx, `SELECT nextval('checkin_serial_seq')`).Scan(&n); err != nil {
		return 0, fmt.Errorf("could not draw serial: %w", err)
	}
	return int(n), nil
}
