package ports

import (
	"context"
	"time"

	"github.com/Coldness00/Fumes-Detector/internal/core"
)

// RetentionReconciler removes expired images and stale verdicts
type RetentionReconciler interface {
	// RunRetentionSweep runs the expiry and orphan sweeps once
	RunRetentionSweep(ctx context.Context) (*core.SweepSummary, error)

	// StartRetentionScheduler runs the sweeps periodically
	StartRetentionScheduler(interval time.Duration) error

	// Stop stops the scheduler
	Stop()
}
