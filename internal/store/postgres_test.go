package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/model"
)

var batchRowColumns = []string{
	"id", "status", "total_chunks", "processed_chunks", "total_leads",
	"leads_data", "error_message", "created_at", "updated_at",
}

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgres(mock), mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS lead_batches`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateBatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO lead_batches`).
		WithArgs(pgxmock.AnyArg(), "pending", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	b, err := s.CreateBatch(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, model.BatchStatusPending, b.Status)
	assert.Zero(t, b.TotalChunks)
	assert.False(t, b.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateBatch_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO lead_batches`).
		WillReturnError(errors.New("connection refused"))

	_, err := s.CreateBatch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: insert batch")
}

func TestPostgresStore_UpdateBatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	status := model.BatchStatusProcessing
	processed := 2
	mock.ExpectExec(`UPDATE lead_batches SET status = \$1, processed_chunks = \$2, updated_at = \$3 WHERE id = \$4`).
		WithArgs("processing", 2, pgxmock.AnyArg(), "b1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateBatch(context.Background(), "b1", model.BatchUpdate{Status: &status, ProcessedChunks: &processed})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateBatch_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE lead_batches SET updated_at = \$1 WHERE id = \$2`).
		WithArgs(pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateBatch(context.Background(), "missing", model.BatchUpdate{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetBatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, status, .* FROM lead_batches WHERE id = \$1`).
		WithArgs("b1").
		WillReturnRows(pgxmock.NewRows(batchRowColumns).AddRow(
			"b1", model.BatchStatusCompleted, 3, 3, 1,
			[]byte(`[{"name":"Ali","phone_number":"+90 555 111","destination":"Istanbul","status":"New Lead","price":"200€"}]`),
			"", now, now,
		))

	b, err := s.GetBatch(context.Background(), "b1")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, model.BatchStatusCompleted, b.Status)
	assert.Equal(t, 3, b.TotalChunks)
	assert.Equal(t, 3, b.ProcessedChunks)
	assert.Equal(t, 1, b.TotalLeads)
	require.Len(t, b.LeadsData, 1)
	assert.Equal(t, "Ali", b.LeadsData[0].Name)
	assert.Equal(t, now, b.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetBatch_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, status, .* FROM lead_batches WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	b, err := s.GetBatch(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, b)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetBatch_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, status, .* FROM lead_batches WHERE id = \$1`).
		WithArgs("b1").
		WillReturnError(errors.New("timeout"))

	_, err := s.GetBatch(context.Background(), "b1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: get batch b1")
}

func TestPostgresStore_DeleteBatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM lead_batches WHERE id = \$1`).
		WithArgs("gone").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.DeleteBatch(context.Background(), "gone"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListBatches(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM lead_batches WHERE 1=1 AND status = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("failed", 10, 5).
		WillReturnRows(pgxmock.NewRows(batchRowColumns).
			AddRow("b1", model.BatchStatusFailed, 2, 1, 0, []byte(nil), "provider down", now, now).
			AddRow("b2", model.BatchStatusFailed, 0, 0, 0, []byte(nil), "boom", now, now))

	batches, err := s.ListBatches(context.Background(), model.BatchFilter{Status: model.BatchStatusFailed, Limit: 10, Offset: 5})
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "provider down", batches[0].ErrorMessage)
	assert.Nil(t, batches[0].LeadsData)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListBatches_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`ORDER BY created_at DESC LIMIT \$1$`).
		WithArgs(defaultListLimit).
		WillReturnRows(pgxmock.NewRows(batchRowColumns))

	batches, err := s.ListBatches(context.Background(), model.BatchFilter{})
	require.NoError(t, err)
	assert.Empty(t, batches)
	assert.NoError(t, mock.ExpectationsWereMet())
}
