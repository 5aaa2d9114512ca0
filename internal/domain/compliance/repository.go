package compliance

import (
	"context"

	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
)

// SourceRepository delivers the raw record streams of one recompute cycle.
type SourceRepository interface {
	// LoadDataset returns roster, org nodes and holidays in full and the
	// presence and leave rows dated inside horizon.
	LoadDataset(ctx context.Context, horizon calendar.Window) (*Dataset, error)
}

// SnapshotRepository persists published snapshots, versioned by recompute
// time.
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot *Snapshot) error
	Latest(ctx context.Context) (*Snapshot, error)
	GetByVersion(ctx context.Context, version string) (*Snapshot, error)
	// Prune deletes all but the newest keep versions.
	Prune(ctx context.Context, keep int) (int64, error)
}
