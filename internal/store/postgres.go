package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/db"
	"github.com/sells-group/leads-cli/internal/model"
)

// PostgresStore implements BatchStore on the lead_batches table.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres wraps an open pool.
func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS lead_batches (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status           TEXT NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
	total_chunks     INTEGER NOT NULL DEFAULT 0,
	processed_chunks INTEGER NOT NULL DEFAULT 0,
	total_leads      INTEGER NOT NULL DEFAULT 0,
	leads_data       JSONB,
	error_message    TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_lead_batches_status ON lead_batches(status);
CREATE INDEX IF NOT EXISTS idx_lead_batches_created_at ON lead_batches(created_at DESC);
`

const batchColumns = `id, status, total_chunks, processed_chunks, total_leads, leads_data, COALESCE(error_message, ''), created_at, updated_at`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateBatch(ctx context.Context) (*model.Batch, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO lead_batches (id, status, total_chunks, processed_chunks, total_leads, created_at, updated_at) VALUES ($1, $2, 0, 0, 0, $3, $4)`,
		id, string(model.BatchStatusPending), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert batch")
	}

	return &model.Batch{
		ID:        id,
		Status:    model.BatchStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateBatch(ctx context.Context, id string, update model.BatchUpdate) error {
	set, args, err := updateSet(update, time.Now().UTC(), func(n int) string { return fmt.Sprintf("$%d", n) })
	if err != nil {
		return err
	}
	args = append(args, id)

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE lead_batches SET %s WHERE id = $%d`, set, len(args)),
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update batch %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update batch %s", id)
	}
	return nil
}

func (s *PostgresStore) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM lead_batches WHERE id = $1`,
		id,
	)
	b, err := scanPgBatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get batch %s", id)
	}
	return b, nil
}

func (s *PostgresStore) DeleteBatch(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM lead_batches WHERE id = $1`, id)
	return eris.Wrapf(err, "postgres: delete batch %s", id)
}

func (s *PostgresStore) ListBatches(ctx context.Context, filter model.BatchFilter) ([]model.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM lead_batches WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`

	args = append(args, listLimit(filter))
	query += fmt.Sprintf(` LIMIT $%d`, len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list batches")
	}
	defer rows.Close()

	var batches []model.Batch
	for rows.Next() {
		b, err := scanPgBatch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan batch")
		}
		batches = append(batches, *b)
	}
	return batches, eris.Wrap(rows.Err(), "postgres: list batches iterate")
}

func scanPgBatch(row pgx.Row) (*model.Batch, error) {
	var (
		b     model.Batch
		leads []byte
	)
	err := row.Scan(&b.ID, &b.Status, &b.TotalChunks, &b.ProcessedChunks, &b.TotalLeads,
		&leads, &b.ErrorMessage, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if b.LeadsData, err = decodeLeads(leads); err != nil {
		return nil, err
	}
	return &b, nil
}
