package integration

import "time"

// ---------------------------------------------------------------------------
// RunReport
// ---------------------------------------------------------------------------

// RunReport accumulates per-item results over a sync pass. A run that
// dead-lettered or fatally failed any item reports a non-zero exit code while
// still having processed every other item.
type RunReport struct {
	// SyncType is the pass this report covers
	SyncType SyncType
	// StartedAt is when the pass began
	StartedAt time.Time
	// FinishedAt is when the pass ended
	FinishedAt time.Time
	// Succeeded counts items synced successfully
	Succeeded int
	// Skipped counts items already in sync (mapping present, no work)
	Skipped int
	// DeadLettered counts items written to the dead-letter queue
	DeadLettered int
	// Failed counts items that failed without a dead-letter record
	// (non-order passes have no dead-letter path)
	Failed int
}

// NewRunReport starts a report for a sync pass.
func NewRunReport(syncType SyncType) *RunReport {
	return &RunReport{
		SyncType:  syncType,
		StartedAt: time.Now(),
	}
}

// Finish stamps the end of the pass and returns the report.
func (r *RunReport) Finish() *RunReport {
	r.FinishedAt = time.Now()
	return r
}

// Total returns the number of items the pass looked at.
func (r *RunReport) Total() int {
	return r.Succeeded + r.Skipped + r.DeadLettered + r.Failed
}

// Duration returns how long the pass took.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ExitCode returns 0 for a clean pass and 1 if any item reached a dead-letter
// or fatal state.
func (r *RunReport) ExitCode() int {
	if r.DeadLettered > 0 || r.Failed > 0 {
		return 1
	}
	return 0
}
