// internal/model/report.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type RepairAction string

const (
	ActionKept     RepairAction = "kept"
	ActionRemapped RepairAction = "remapped"
	ActionCleared  RepairAction = "cleared"
)

// Decision records what link repair did with one room.
type Decision struct {
	RoomID     RoomID       `json:"room_id"`
	RoomNumber string       `json:"room_number"`
	Before     RawRef       `json:"before"`
	After      RawRef       `json:"after,omitempty"`
	Action     RepairAction `json:"action"`
	Error      string       `json:"error,omitempty"`
}

type RepairResult struct {
	Scanned   int        `json:"scanned"`
	Kept      int        `json:"kept"`
	Remapped  int        `json:"remapped"`
	Cleared   int        `json:"cleared"`
	Errors    int        `json:"errors"`
	Decisions []Decision `json:"decisions"`
}

type VerifyResult struct {
	Linked int `json:"linked"`
	Valid  int `json:"valid"`
}

// Invalid is the number of links that still do not resolve to a user.
func (v VerifyResult) Invalid() int { return v.Linked - v.Valid }

type SyncResult struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Report is the outcome of one reconciliation run.
type Report struct {
	RunID      uuid.UUID    `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	DryRun     bool         `json:"dry_run"`
	Repair     RepairResult `json:"repair"`
	Verify     VerifyResult `json:"verify"`
	Sync       SyncResult   `json:"sync"`
}

// Fixed is the number of rooms whose link was rewritten or cleared.
func (r *Report) Fixed() int { return r.Repair.Remapped + r.Repair.Cleared }

func (r *Report) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Changed reports whether the run wrote, or in dry-run would write, anything.
func (r *Report) Changed() bool { return r.Fixed() > 0 || r.Sync.Updated > 0 }
