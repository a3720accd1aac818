package executor

import (
	"context"

	"github.com/inconshreveable/log15"

	"github.com/opsgrove/snapsweep/internal/models"
)

// DeletionSink performs the actual snapshot deletion. Implemented by
// the EC2 client in production and by fakes in tests.
type DeletionSink interface {
	DeleteSnapshot(ctx context.Context, snapshotID string) error
}

// Executor applies a deletion plan against a sink. Deletions are
// independent operations: a failure on one snapshot never stops the
// remaining ones, it is recorded and the walk continues.
type Executor struct {
	sink DeletionSink
	log  log15.Logger
}

// New returns an Executor writing through the given sink.
func New(sink DeletionSink, log log15.Logger) *Executor {
	return &Executor{sink: sink, log: log}
}

// Execute walks the plan and returns exactly one record per plan entry.
// KEEP entries are recorded as skipped with their keep reason. DELETE
// entries are deleted in live mode; in dry-run mode no deletion call is
// issued and the intent is recorded as would_delete.
func (e *Executor) Execute(ctx context.Context, plan *models.DeletionPlan, dryRun bool) []models.ExecutionRecord {
	records := make([]models.ExecutionRecord, 0, len(plan.Entries))
	for _, entry := range plan.Entries {
		rec := models.ExecutionRecord{
			SnapshotID: entry.Snapshot.ID,
			VolumeID:   entry.Snapshot.VolumeID,
			StartTime:  entry.Snapshot.StartTime,
			SizeGB:     entry.Snapshot.SizeGB,
			Decision:   entry.Decision,
			Reason:     entry.Reason,
		}
		switch {
		case entry.Decision == models.DecisionKeep:
			rec.Outcome = models.OutcomeSkipped
		case dryRun:
			rec.Outcome = models.OutcomeWouldDelete
			e.log.Info("would delete snapshot (dry run)",
				"snapshot", entry.Snapshot.ID,
				"volume", entry.Snapshot.VolumeID,
				"created", entry.Snapshot.StartTime,
			)
		default:
			if err := e.sink.DeleteSnapshot(ctx, entry.Snapshot.ID); err != nil {
				rec.Outcome = models.OutcomeFailed
				rec.Error = err.Error()
				e.log.Error("failed to delete snapshot",
					"snapshot", entry.Snapshot.ID,
					"volume", entry.Snapshot.VolumeID,
					"error", err,
				)
			} else {
				rec.Outcome = models.OutcomeDeleted
				e.log.Info("deleted snapshot",
					"snapshot", entry.Snapshot.ID,
					"volume", entry.Snapshot.VolumeID,
					"created", entry.Snapshot.StartTime,
				)
			}
		}
		records = append(records, rec)
	}
	return records
}
