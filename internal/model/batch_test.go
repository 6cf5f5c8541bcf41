package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status BatchStatus
		want   string
	}{
		{BatchStatusPending, "pending"},
		{BatchStatusProcessing, "processing"},
		{BatchStatusCompleted, "completed"},
		{BatchStatusFailed, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
			assert.True(t, tt.status.IsValid())
		})
	}

	assert.False(t, BatchStatus("queued").IsValid())
}

func TestBatchStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, BatchStatusPending.IsTerminal())
	assert.False(t, BatchStatusProcessing.IsTerminal())
	assert.True(t, BatchStatusCompleted.IsTerminal())
	assert.True(t, BatchStatusFailed.IsTerminal())
}

func TestBatchStatus_CanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to BatchStatus
		want     bool
	}{
		{BatchStatusPending, BatchStatusProcessing, true},
		{BatchStatusPending, BatchStatusFailed, true},
		{BatchStatusPending, BatchStatusCompleted, false},
		{BatchStatusPending, BatchStatusPending, false},
		{BatchStatusProcessing, BatchStatusProcessing, true},
		{BatchStatusProcessing, BatchStatusCompleted, true},
		{BatchStatusProcessing, BatchStatusFailed, true},
		{BatchStatusProcessing, BatchStatusPending, false},
		{BatchStatusCompleted, BatchStatusProcessing, false},
		{BatchStatusCompleted, BatchStatusFailed, false},
		{BatchStatusFailed, BatchStatusProcessing, false},
		{BatchStatusFailed, BatchStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestBatchUpdate_Apply(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b := &Batch{ID: "b1", Status: BatchStatusPending, CreatedAt: created, UpdatedAt: created}

	status := BatchStatusProcessing
	total := 3
	u := BatchUpdate{Status: &status, TotalChunks: &total}
	assert.False(t, u.IsEmpty())

	now := created.Add(time.Minute)
	u.Apply(b, now)

	assert.Equal(t, BatchStatusProcessing, b.Status)
	assert.Equal(t, 3, b.TotalChunks)
	assert.Equal(t, 0, b.ProcessedChunks)
	assert.Nil(t, b.LeadsData)
	assert.Empty(t, b.ErrorMessage)
	assert.Equal(t, created, b.CreatedAt)
	assert.Equal(t, now, b.UpdatedAt)
}

func TestBatchUpdate_ApplyLeads(t *testing.T) {
	t.Parallel()

	b := &Batch{ID: "b1", Status: BatchStatusProcessing}
	status := BatchStatusCompleted
	n := 1
	u := BatchUpdate{
		Status:     &status,
		TotalLeads: &n,
		LeadsData:  []Lead{{Name: "Ali", PhoneNumber: "+90 555 111", Status: LeadStatusNew}},
	}
	u.Apply(b, time.Now())

	assert.Equal(t, BatchStatusCompleted, b.Status)
	assert.Equal(t, 1, b.TotalLeads)
	assert.Len(t, b.LeadsData, 1)
}

func TestBatchUpdate_IsEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, BatchUpdate{}.IsEmpty())
	msg := "boom"
	assert.False(t, BatchUpdate{ErrorMessage: &msg}.IsEmpty())
	assert.False(t, BatchUpdate{LeadsData: []Lead{}}.IsEmpty())
}

func TestLead_HasPhoneAndName(t *testing.T) {
	t.Parallel()

	assert.True(t, Lead{PhoneNumber: "+90 555 111"}.HasPhone())
	assert.False(t, Lead{PhoneNumber: PhoneNotAvailable}.HasPhone())
	assert.False(t, Lead{}.HasPhone())

	assert.True(t, Lead{Name: "Ali"}.HasName())
	assert.False(t, Lead{Name: NamePlaceholder}.HasName())
	assert.False(t, Lead{}.HasName())
}

func TestBatch_MarshalJSON_LeadsData(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name  string
		batch Batch
		want  string
		omit  bool
	}{
		{"completed nil leads", Batch{ID: "b1", Status: BatchStatusCompleted}, `"leads_data":[]`, false},
		{"completed empty leads", Batch{ID: "b1", Status: BatchStatusCompleted, LeadsData: []Lead{}}, `"leads_data":[]`, false},
		{"completed with leads", Batch{ID: "b1", Status: BatchStatusCompleted, TotalLeads: 1, LeadsData: []Lead{{Name: "Ali"}}}, `"leads_data":[{"name":"Ali"`, false},
		{"processing", Batch{ID: "b1", Status: BatchStatusProcessing}, `"leads_data"`, true},
		{"failed", Batch{ID: "b1", Status: BatchStatusFailed, ErrorMessage: "boom"}, `"leads_data"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.batch.CreatedAt, tt.batch.UpdatedAt = ts, ts

			data, err := json.Marshal(tt.batch)
			require.NoError(t, err)
			if tt.omit {
				assert.NotContains(t, string(data), tt.want)
			} else {
				assert.Contains(t, string(data), tt.want)
			}

			var back Batch
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, tt.batch.ID, back.ID)
			assert.Equal(t, tt.batch.Status, back.Status)
			assert.Equal(t, len(tt.batch.LeadsData), len(back.LeadsData))
		})
	}
}
