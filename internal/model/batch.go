package model

import (
	"encoding/json"
	"time"
)

// BatchStatus represents the lifecycle state of an extraction batch.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
)

// IsValid reports whether s is a known status.
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusPending, BatchStatusProcessing, BatchStatusCompleted, BatchStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether s is completed or failed.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusFailed
}

// CanTransition reports whether a batch in state s may move to next.
// processing -> processing is allowed so chunk counters can be refreshed.
func (s BatchStatus) CanTransition(next BatchStatus) bool {
	switch s {
	case BatchStatusPending:
		return next == BatchStatusProcessing || next == BatchStatusFailed
	case BatchStatusProcessing:
		return next == BatchStatusProcessing || next == BatchStatusCompleted || next == BatchStatusFailed
	default:
		return false
	}
}

// Batch is the persisted progress record of one extraction run.
type Batch struct {
	ID              string      `json:"id"`
	Status          BatchStatus `json:"status"`
	TotalChunks     int         `json:"total_chunks"`
	ProcessedChunks int         `json:"processed_chunks"`
	TotalLeads      int         `json:"total_leads"`
	LeadsData       []Lead      `json:"leads_data,omitempty"`
	ErrorMessage    string      `json:"error_message,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// MarshalJSON writes leads_data for every completed batch, as [] when the run
// found no leads. Open and failed batches omit it.
func (b Batch) MarshalJSON() ([]byte, error) {
	type plain Batch
	if b.Status != BatchStatusCompleted {
		return json.Marshal(plain(b))
	}
	leads := b.LeadsData
	if leads == nil {
		leads = []Lead{}
	}
	return json.Marshal(struct {
		plain
		LeadsData []Lead `json:"leads_data"`
	}{plain(b), leads})
}

// BatchUpdate carries a partial update. Nil fields are left unchanged.
type BatchUpdate struct {
	Status          *BatchStatus
	TotalChunks     *int
	ProcessedChunks *int
	TotalLeads      *int
	LeadsData       []Lead
	ErrorMessage    *string
}

// IsEmpty reports whether the update changes nothing besides updated_at.
func (u BatchUpdate) IsEmpty() bool {
	return u.Status == nil && u.TotalChunks == nil && u.ProcessedChunks == nil &&
		u.TotalLeads == nil && u.LeadsData == nil && u.ErrorMessage == nil
}

// Apply copies the set fields of u onto b and stamps UpdatedAt.
func (u BatchUpdate) Apply(b *Batch, now time.Time) {
	if u.Status != nil {
		b.Status = *u.Status
	}
	if u.TotalChunks != nil {
		b.TotalChunks = *u.TotalChunks
	}
	if u.ProcessedChunks != nil {
		b.ProcessedChunks = *u.ProcessedChunks
	}
	if u.TotalLeads != nil {
		b.TotalLeads = *u.TotalLeads
	}
	if u.LeadsData != nil {
		b.LeadsData = u.LeadsData
	}
	if u.ErrorMessage != nil {
		b.ErrorMessage = *u.ErrorMessage
	}
	b.UpdatedAt = now
}

// BatchFilter specifies criteria for listing batches.
type BatchFilter struct {
	Status BatchStatus `json:"status,omitempty"`
	Limit  int         `json:"limit,omitempty"`
	Offset int         `json:"offset,omitempty"`
}
