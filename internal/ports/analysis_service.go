package ports

import (
	"context"

	"github.com/Coldness00/Fumes-Detector/internal/core"
)

// AnalysisService is the pipeline surface exposed to the UI layer and schedulers
type AnalysisService interface {
	// SubmitManualAnalysis analyses an image on demand, overwriting any previous verdict
	SubmitManualAnalysis(ctx context.Context, imageID string) (*core.Verdict, error)

	// CachedVerdicts returns a read-only snapshot of image identifier to raw verdict text
	CachedVerdicts(ctx context.Context) (map[string]string, error)

	// Verdicts returns the parsed verdicts for every known image
	Verdicts(ctx context.Context) ([]*core.Verdict, error)

	// SetDiscoveryEnabled pauses or resumes automatic analysis
	SetDiscoveryEnabled(enabled bool)

	// StartBackgroundDiscovery starts watching for new images
	StartBackgroundDiscovery() error

	// Stop stops the background discovery loop
	Stop() error
}
