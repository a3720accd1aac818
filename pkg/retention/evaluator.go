package retention

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/opsgrove/snapsweep/internal/models"
	"github.com/opsgrove/snapsweep/pkg/policy"
)

// ErrInvalidInventory indicates a snapshot inventory that violates the
// evaluator's input contract. It is fatal for the run: no partial plan
// is produced, since a wrong floor or ordering computation risks
// deleting data.
var ErrInvalidInventory = errors.New("invalid snapshot inventory")

// Evaluate computes the deletion plan for the given inventory under the
// given policy. It is a pure function: inputs are never mutated and
// identical inputs always yield an identical plan, so a dry-run preview
// can be re-run unchanged for real deletion.
//
// Snapshots are judged per volume in this precedence, first match wins:
//
//  1. volume carries the critical tag            -> KEEP critical_volume
//  2. snapshot carries the protected tag         -> KEEP protected_tag
//  3. snapshot is referenced by an AMI           -> KEEP in_use
//  4. snapshot is younger than the retention age -> KEEP too_recent
//  5. snapshot is one of the MinSnapshotsToKeep
//     most recent snapshots of its volume        -> KEEP min_retention_floor
//  6. otherwise                                  -> DELETE eligible_expired
//
// The floor set is computed over all of a volume's snapshots by recency
// regardless of tags, with ties on StartTime broken by snapshot ID so
// the order is total and deterministic. Only rule 6 ever deletes; a
// KEEP from an earlier rule is never overridden.
//
// snapshotsByVolume values must be sorted by StartTime ascending and
// free of duplicate snapshot IDs; every key must appear in volumes.
// Violations fail with ErrInvalidInventory. A negative
// MinSnapshotsToKeep fails with policy.ErrInvalidPolicy.
func Evaluate(volumes []models.Volume, snapshotsByVolume map[string][]models.Snapshot, pol policy.RetentionPolicy, now time.Time) (*models.DeletionPlan, error) {
	if err := pol.Validate(); err != nil {
		return nil, err
	}
	if err := checkVolumeCoverage(volumes, snapshotsByVolume); err != nil {
		return nil, err
	}

	plan := &models.DeletionPlan{}
	for _, vol := range volumes {
		snaps := snapshotsByVolume[vol.ID]
		if err := checkInventory(vol.ID, snaps); err != nil {
			return nil, err
		}

		critical := pol.MarksVolumeCritical(vol.Tags)
		floor := floorSet(snaps, pol.MinSnapshotsToKeep)

		for _, snap := range snaps {
			entry := models.PlanEntry{Snapshot: snap}
			switch {
			case critical:
				entry.Decision, entry.Reason = models.DecisionKeep, models.ReasonCriticalVolume
			case pol.ProtectsSnapshot(snap.Tags):
				entry.Decision, entry.Reason = models.DecisionKeep, models.ReasonProtectedTag
			case snap.InUse:
				entry.Decision, entry.Reason = models.DecisionKeep, models.ReasonInUse
			case now.Sub(snap.StartTime) < pol.RetentionAge:
				entry.Decision, entry.Reason = models.DecisionKeep, models.ReasonTooRecent
			case floor[snap.ID]:
				entry.Decision, entry.Reason = models.DecisionKeep, models.ReasonMinRetentionFloor
			default:
				entry.Decision, entry.Reason = models.DecisionDelete, models.ReasonEligibleExpired
			}
			plan.Entries = append(plan.Entries, entry)
		}
	}
	return plan, nil
}

// floorSet returns the IDs of the keep (at most) newest snapshots. Ties
// on StartTime rank the lexicographically greater ID as newer, giving a
// deterministic total order. The input slice is not modified.
func floorSet(snaps []models.Snapshot, keep int) map[string]bool {
	set := make(map[string]bool, keep)
	if keep <= 0 || len(snaps) == 0 {
		return set
	}
	ordered := make([]models.Snapshot, len(snaps))
	copy(ordered, snaps)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].StartTime.Equal(ordered[j].StartTime) {
			return ordered[i].ID > ordered[j].ID
		}
		return ordered[i].StartTime.After(ordered[j].StartTime)
	})
	if keep > len(ordered) {
		keep = len(ordered)
	}
	for _, snap := range ordered[:keep] {
		set[snap.ID] = true
	}
	return set
}

// checkInventory enforces the per-volume input contract: snapshots
// belong to the volume, IDs are unique and order is oldest first.
func checkInventory(volumeID string, snaps []models.Snapshot) error {
	seen := make(map[string]bool, len(snaps))
	for i, snap := range snaps {
		if snap.VolumeID != volumeID {
			return fmt.Errorf("%w: snapshot %s listed under volume %s but belongs to %s",
				ErrInvalidInventory, snap.ID, volumeID, snap.VolumeID)
		}
		if seen[snap.ID] {
			return fmt.Errorf("%w: duplicate snapshot %s for volume %s",
				ErrInvalidInventory, snap.ID, volumeID)
		}
		seen[snap.ID] = true
		if i > 0 && snap.StartTime.Before(snaps[i-1].StartTime) {
			return fmt.Errorf("%w: snapshots for volume %s not sorted by creation time",
				ErrInvalidInventory, volumeID)
		}
	}
	return nil
}

// checkVolumeCoverage rejects inventories where a snapshot group has no
// volume entry; those snapshots would otherwise silently drop out of
// the plan.
func checkVolumeCoverage(volumes []models.Volume, snapshotsByVolume map[string][]models.Snapshot) error {
	known := make(map[string]bool, len(volumes))
	for _, vol := range volumes {
		known[vol.ID] = true
	}
	for volumeID := range snapshotsByVolume {
		if !known[volumeID] {
			return fmt.Errorf("%w: snapshots reference volume %s which is not in the volume set",
				ErrInvalidInventory, volumeID)
		}
	}
	return nil
}
