package models

import (
	"fmt"
	"time"
)

// Outcome records what the executor did with a plan entry.
type Outcome string

const (
	OutcomeDeleted     Outcome = "deleted"
	OutcomeWouldDelete Outcome = "would_delete"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeFailed      Outcome = "failed"
)

// ExecutionRecord is the per-snapshot result of a run: the evaluator's
// decision plus the executor's outcome. Error is set only for failed
// outcomes.
type ExecutionRecord struct {
	SnapshotID string    `json:"snapshot_id"`
	VolumeID   string    `json:"volume_id"`
	StartTime  time.Time `json:"start_time"`
	SizeGB     int32     `json:"size_gb"`
	Decision   Decision  `json:"decision"`
	Reason     Reason    `json:"reason"`
	Outcome    Outcome   `json:"outcome"`
	Error      string    `json:"error,omitempty"`
}

// OutcomeString renders the outcome in the skipped:<reason> /
// failed:<error> report notation.
func (r ExecutionRecord) OutcomeString() string {
	switch r.Outcome {
	case OutcomeSkipped:
		return fmt.Sprintf("skipped:%s", r.Reason)
	case OutcomeFailed:
		return fmt.Sprintf("failed:%s", r.Error)
	default:
		return string(r.Outcome)
	}
}

// Summary aggregates a run's outcomes for logging and notification.
type Summary struct {
	Considered   int            `json:"considered"`
	Kept         int            `json:"kept"`
	Deleted      int            `json:"deleted"`
	WouldDelete  int            `json:"would_delete"`
	Failed       int            `json:"failed"`
	KeptByReason map[Reason]int `json:"kept_by_reason"`
}

// RunReport is the full result of one cleanup run. It enumerates every
// snapshot considered; a snapshot missing from Records is a defect.
type RunReport struct {
	DryRun    bool              `json:"dry_run"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Records   []ExecutionRecord `json:"records"`
	Summary   Summary           `json:"summary"`
}

// NewRunReport assembles a report from execution records and computes
// the summary counts.
func NewRunReport(dryRun bool, startedAt time.Time, duration time.Duration, records []ExecutionRecord) *RunReport {
	summary := Summary{
		Considered:   len(records),
		KeptByReason: make(map[Reason]int),
	}
	for _, rec := range records {
		switch rec.Outcome {
		case OutcomeDeleted:
			summary.Deleted++
		case OutcomeWouldDelete:
			summary.WouldDelete++
		case OutcomeFailed:
			summary.Failed++
		case OutcomeSkipped:
			summary.Kept++
			summary.KeptByReason[rec.Reason]++
		}
	}
	return &RunReport{
		DryRun:    dryRun,
		StartedAt: startedAt,
		Duration:  duration,
		Records:   records,
		Summary:   summary,
	}
}
