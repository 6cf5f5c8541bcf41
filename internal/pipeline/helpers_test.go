package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/store"
)

// conversation builds n lines of exactly width characters joined by "\n".
func conversation(n, width int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("%-*s", width, fmt.Sprintf("[%04d] Ali: +90 555 %04d wants Istanbul", i, i))
	}
	return strings.Join(lines, "\n")
}

// funcExtractor adapts a function to ChunkExtractor and tracks concurrency.
type funcExtractor struct {
	fn func(ctx context.Context, text string, idx, total int) []model.Lead

	mu       sync.Mutex
	calls    []int
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *funcExtractor) ExtractLeadsFromChunk(ctx context.Context, text string, idx, total int) []model.Lead {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, idx)
	f.mu.Unlock()

	if f.fn == nil {
		return []model.Lead{}
	}
	return f.fn(ctx, text, idx, total)
}

// recordingProgress captures Progress calls in order.
type recordingProgress struct {
	mu        sync.Mutex
	events    []string
	advances  []int
	total     int
	leads     []model.Lead
	failMsg   string
	startErr  error
	advErr    error
	completed bool
}

func (r *recordingProgress) Start(_ context.Context, total int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "start")
	r.total = total
	return r.startErr
}

func (r *recordingProgress) Advance(_ context.Context, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "advance")
	r.advances = append(r.advances, n)
	return r.advErr
}

func (r *recordingProgress) Complete(_ context.Context, leads []model.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "complete")
	r.leads = leads
	r.completed = true
	return nil
}

func (r *recordingProgress) Fail(_ context.Context, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "fail")
	r.failMsg = msg
	return nil
}

func lead(name, phone string) model.Lead {
	return model.Lead{
		Name:        name,
		PhoneNumber: phone,
		Destination: model.DestinationUnspecified,
		Status:      model.LeadStatusNew,
		Price:       model.PriceNotDiscussed,
	}
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	return s
}
