// Package busy reports whether a legacy synchronous pipeline run is in
// progress, using an advisory file lock. Only the HTTP trigger probes
// it; the queue consumer never touches the lock, so queued tasks keep
// flowing while one is being processed.
package busy

import (
	"fmt"

	"github.com/gofrs/flock"
)

// Gate answers "is a legacy synchronous run busy right now". The legacy
// runner holds the lock for its run; the trigger probes it before
// accepting new work.
type Gate struct {
	lock *flock.Flock
}

// NewGate creates a gate over the lock file at path. The file is
// created on first use and never removed.
func NewGate(path string) *Gate {
	return &Gate{lock: flock.New(path)}
}

// InProgress probes the lock without blocking. A successful probe
// acquires and immediately releases the lock, so the gate itself never
// holds the pipeline busy.
func (g *Gate) InProgress() (bool, error) {
	got, err := g.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe busy lock: %w", err)
	}
	if !got {
		return true, nil
	}
	if err := g.lock.Unlock(); err != nil {
		return false, fmt.Errorf("release busy lock: %w", err)
	}
	return false, nil
}

// Acquire takes the lock for the duration of a legacy synchronous run.
// It returns false when another holder already has it.
func (g *Gate) Acquire() (bool, error) {
	got, err := g.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire busy lock: %w", err)
	}
	return got, nil
}

// Release gives the lock back after a run completes.
func (g *Gate) Release() error {
	if err := g.lock.Unlock(); err != nil {
		return fmt.Errorf("release busy lock: %w", err)
	}
	return nil
}
