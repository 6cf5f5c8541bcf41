// Package monitoring summarizes batch records and fails batches whose run
// has gone silent.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/store"
)

// scanLimit caps the number of records read per collection.
const scanLimit = 10000

// Snapshot is a point-in-time view of batch activity.
type Snapshot struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`

	// FailRate is failed / (completed + failed).
	FailRate float64 `json:"fail_rate"`
	// TotalLeads sums total_leads over completed batches.
	TotalLeads int `json:"total_leads"`
	// Stale lists open batches not updated within the stale window.
	Stale []string `json:"stale,omitempty"`

	Lookback    time.Duration `json:"lookback"`
	CollectedAt time.Time     `json:"collected_at"`
}

// Collector builds snapshots from a batch store.
type Collector struct {
	store      store.BatchStore
	staleAfter time.Duration
	now        func() time.Time
}

// NewCollector creates a Collector. Open batches untouched for staleAfter are
// reported as stale; a zero staleAfter disables the check.
func NewCollector(st store.BatchStore, staleAfter time.Duration) *Collector {
	return &Collector{store: st, staleAfter: staleAfter, now: time.Now}
}

// Collect summarizes batches created within lookback. A zero lookback covers
// every record up to the scan limit.
func (c *Collector) Collect(ctx context.Context, lookback time.Duration) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{Lookback: lookback, CollectedAt: now}

	batches, err := c.store.ListBatches(ctx, model.BatchFilter{Limit: scanLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list batches")
	}

	for _, b := range batches {
		if lookback > 0 && b.CreatedAt.Before(now.Add(-lookback)) {
			continue
		}
		snap.Total++
		switch b.Status {
		case model.BatchStatusPending:
			snap.Pending++
		case model.BatchStatusProcessing:
			snap.Processing++
		case model.BatchStatusCompleted:
			snap.Completed++
			snap.TotalLeads += b.TotalLeads
		case model.BatchStatusFailed:
			snap.Failed++
		}
		if c.staleAfter > 0 && !b.Status.IsTerminal() && now.Sub(b.UpdatedAt) > c.staleAfter {
			snap.Stale = append(snap.Stale, b.ID)
		}
	}

	if finished := snap.Completed + snap.Failed; finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}
	return snap, nil
}
