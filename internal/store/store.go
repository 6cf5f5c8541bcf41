// Package store persists extraction batch progress records.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/config"
	"github.com/sells-group/leads-cli/internal/db"
	"github.com/sells-group/leads-cli/internal/model"
)

// ErrNotFound is returned by UpdateBatch when no record has the given id.
var ErrNotFound = eris.New("store: batch not found")

// defaultListLimit caps ListBatches when the filter sets no limit.
const defaultListLimit = 100

// BatchStore is a pass-through adapter over the batch record store. GetBatch
// returns (nil, nil) for an unknown id and DeleteBatch ignores unknown ids,
// so pollers that race a cleanup never see an error.
type BatchStore interface {
	CreateBatch(ctx context.Context) (*model.Batch, error)
	UpdateBatch(ctx context.Context, id string, update model.BatchUpdate) error
	GetBatch(ctx context.Context, id string) (*model.Batch, error)
	DeleteBatch(ctx context.Context, id string) error
	ListBatches(ctx context.Context, filter model.BatchFilter) ([]model.Batch, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects the backend selected by store.driver.
func Open(ctx context.Context, cfg *config.Config) (BatchStore, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store: store.database_url is required for postgres")
		}
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, db.PoolConfig{MaxConns: cfg.Store.MaxConns})
		if err != nil {
			return nil, eris.Wrap(err, "store: connect postgres")
		}
		return NewPostgres(pool), nil
	case "sqlite":
		return NewSQLite(cfg.Store.SQLitePath)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close() //nolint:errcheck
			return nil, eris.Wrap(err, "store: ping redis")
		}
		return NewRedis(client, cfg.Redis.TTL), nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Store.Driver)
	}
}

// updateSet renders the SET clause of a partial batch update. placeholder
// returns the bind marker for the n-th (1-based) argument. updated_at is
// always the last column.
func updateSet(u model.BatchUpdate, now any, placeholder func(n int) string) (string, []any, error) {
	var (
		cols []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		cols = append(cols, fmt.Sprintf("%s = %s", col, placeholder(len(args))))
	}

	if u.Status != nil {
		add("status", string(*u.Status))
	}
	if u.TotalChunks != nil {
		add("total_chunks", *u.TotalChunks)
	}
	if u.ProcessedChunks != nil {
		add("processed_chunks", *u.ProcessedChunks)
	}
	if u.TotalLeads != nil {
		add("total_leads", *u.TotalLeads)
	}
	if u.LeadsData != nil {
		data, err := json.Marshal(u.LeadsData)
		if err != nil {
			return "", nil, eris.Wrap(err, "store: marshal leads")
		}
		add("leads_data", string(data))
	}
	if u.ErrorMessage != nil {
		add("error_message", *u.ErrorMessage)
	}
	add("updated_at", now)

	return strings.Join(cols, ", "), args, nil
}

// decodeLeads unmarshals a stored leads_data column. Empty and null values
// decode to nil.
func decodeLeads(data []byte) ([]model.Lead, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var leads []model.Lead
	if err := json.Unmarshal(data, &leads); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal leads")
	}
	return leads, nil
}

func listLimit(f model.BatchFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}
