// Package broadcast holds the single-slot latest-Snapshot cell described in
// spec.md §4.8: one writer (the tick loop), many readers (observers),
// reads never block writes.
package broadcast

import (
	"sync/atomic"

	"github.com/gridctl/gridctl/internal/domain"
)

// Broadcaster is safe for concurrent use by exactly one writer and any
// number of readers.
type Broadcaster struct {
	cell atomic.Pointer[domain.Snapshot]
}

// New returns an empty Broadcaster; GetLatestSnapshot returns
// ErrSnapshotNotReady until the first Publish.
func New() *Broadcaster {
	return &Broadcaster{}
}

// Publish installs snapshot as the current value. Snapshots must be
// published in strictly increasing tick order (enforced by the tick
// loop, not here).
func (b *Broadcaster) Publish(snapshot domain.Snapshot) {
	b.cell.Store(&snapshot)
}

// GetLatestSnapshot returns the most recently published Snapshot, or
// domain.ErrSnapshotNotReady if no tick has completed yet.
func (b *Broadcaster) GetLatestSnapshot() (domain.Snapshot, error) {
	p := b.cell.Load()
	if p == nil {
		return domain.Snapshot{}, domain.ErrSnapshotNotReady
	}
	return *p, nil
}
