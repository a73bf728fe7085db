package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Snapshot is an exported copy of every account at the end of a run.
type Snapshot struct {
	RunID     uuid.UUID `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Accounts  []Account `json:"accounts"`
}

type SnapshotRepository interface {
	CreateSnapshot(ctx context.Context, snapshot *Snapshot) error
	GetSnapshot(ctx context.Context, runID uuid.UUID) (*Snapshot, error)
}
