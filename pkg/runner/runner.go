package runner

import (
	"context"
	"time"

	"github.com/inconshreveable/log15"

	"github.com/opsgrove/snapsweep/internal/models"
	"github.com/opsgrove/snapsweep/pkg/executor"
	"github.com/opsgrove/snapsweep/pkg/policy"
	"github.com/opsgrove/snapsweep/pkg/retention"
)

// InventorySource produces the per-run snapshot inventory, with in-use
// status already cross-referenced against AMIs.
type InventorySource interface {
	FetchInventory(ctx context.Context) (*models.Inventory, error)
}

// Notifier delivers the run report. Delivery is fire-and-forget:
// failures are logged and never fail the run.
type Notifier interface {
	Publish(ctx context.Context, report *models.RunReport) error
}

// Runner wires one cleanup run together: fetch inventory, evaluate the
// retention policy, execute the plan and report. It holds no state
// between runs.
type Runner struct {
	inventory InventorySource
	exec      *executor.Executor
	notifier  Notifier // optional
	pol       policy.RetentionPolicy
	log       log15.Logger
	now       func() time.Time
}

// New returns a Runner. notifier may be nil when no notification target
// is configured.
func New(inventory InventorySource, exec *executor.Executor, notifier Notifier, pol policy.RetentionPolicy, log log15.Logger) *Runner {
	return &Runner{
		inventory: inventory,
		exec:      exec,
		notifier:  notifier,
		pol:       pol,
		log:       log,
		now:       time.Now,
	}
}

// Run performs a single cleanup pass. Input errors (bad inventory, bad
// policy) abort before any deletion is attempted. Per-snapshot deletion
// failures are aggregated into the report instead of failing the run.
func (r *Runner) Run(ctx context.Context) (*models.RunReport, error) {
	start := r.now()
	r.log.Info("starting snapshot cleanup run",
		"retention_age", r.pol.RetentionAge,
		"min_snapshots_to_keep", r.pol.MinSnapshotsToKeep,
		"dry_run", r.pol.DryRun,
	)

	inv, err := r.inventory.FetchInventory(ctx)
	if err != nil {
		return nil, err
	}
	r.log.Info("fetched snapshot inventory",
		"volumes", len(inv.Volumes),
		"snapshots", countSnapshots(inv),
	)

	plan, err := retention.Evaluate(inv.Volumes, inv.SnapshotsByVolume, r.pol, start)
	if err != nil {
		return nil, err
	}

	records := r.exec.Execute(ctx, plan, r.pol.DryRun)
	report := models.NewRunReport(r.pol.DryRun, start, r.now().Sub(start), records)

	r.log.Info("snapshot cleanup run complete",
		"considered", report.Summary.Considered,
		"kept", report.Summary.Kept,
		"deleted", report.Summary.Deleted,
		"would_delete", report.Summary.WouldDelete,
		"failed", report.Summary.Failed,
		"duration", report.Duration,
	)

	if r.notifier != nil {
		if err := r.notifier.Publish(ctx, report); err != nil {
			r.log.Warn("failed to publish run report", "error", err)
		}
	}
	return report, nil
}

func countSnapshots(inv *models.Inventory) int {
	n := 0
	for _, snaps := range inv.SnapshotsByVolume {
		n += len(snaps)
	}
	return n
}
