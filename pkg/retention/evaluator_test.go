package retention

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/opsgrove/snapsweep/internal/models"
	"github.com/opsgrove/snapsweep/pkg/policy"
)

var evalNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testPolicy() policy.RetentionPolicy {
	return policy.RetentionPolicy{
		RetentionAge:       30 * 24 * time.Hour,
		MinSnapshotsToKeep: 3,
		ProtectedTagKey:    "ProtectSnapshot",
		ProtectedTagValue:  "true",
		CriticalTagKey:     "CriticalVolume",
		CriticalTagValue:   "true",
		DryRun:             true,
	}
}

func snap(id, volumeID string, ageDays int) models.Snapshot {
	return models.Snapshot{
		ID:        id,
		VolumeID:  volumeID,
		StartTime: evalNow.AddDate(0, 0, -ageDays),
	}
}

func singleVolume(volumeTags map[string]string, snaps ...models.Snapshot) ([]models.Volume, map[string][]models.Snapshot) {
	volumes := []models.Volume{{ID: "vol-1", Tags: volumeTags}}
	return volumes, map[string][]models.Snapshot{"vol-1": snaps}
}

func decisionOf(t *testing.T, plan *models.DeletionPlan, snapshotID string) models.PlanEntry {
	t.Helper()
	for _, e := range plan.Entries {
		if e.Snapshot.ID == snapshotID {
			return e
		}
	}
	t.Fatalf("snapshot %s missing from plan", snapshotID)
	return models.PlanEntry{}
}

func TestEvaluateRetentionScenario(t *testing.T) {
	// minKeep=3, retention=30d, ages [60,50,40,10,1] oldest first.
	volumes, byVol := singleVolume(nil,
		snap("snap-60", "vol-1", 60),
		snap("snap-50", "vol-1", 50),
		snap("snap-40", "vol-1", 40),
		snap("snap-10", "vol-1", 10),
		snap("snap-01", "vol-1", 1),
	)

	plan, err := Evaluate(volumes, byVol, testPolicy(), evalNow)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}

	want := []struct {
		id       string
		decision models.Decision
		reason   models.Reason
	}{
		{"snap-60", models.DecisionDelete, models.ReasonEligibleExpired},
		{"snap-50", models.DecisionDelete, models.ReasonEligibleExpired},
		{"snap-40", models.DecisionKeep, models.ReasonMinRetentionFloor},
		{"snap-10", models.DecisionKeep, models.ReasonTooRecent},
		{"snap-01", models.DecisionKeep, models.ReasonTooRecent},
	}
	if len(plan.Entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(plan.Entries))
	}
	for i, w := range want {
		e := plan.Entries[i]
		if e.Snapshot.ID != w.id || e.Decision != w.decision || e.Reason != w.reason {
			t.Errorf("entry %d: got (%s, %s, %s), want (%s, %s, %s)",
				i, e.Snapshot.ID, e.Decision, e.Reason, w.id, w.decision, w.reason)
		}
	}
}

func TestEvaluateCriticalVolumeAlwaysKeeps(t *testing.T) {
	volumes, byVol := singleVolume(map[string]string{"CriticalVolume": "true"},
		snap("snap-old", "vol-1", 400),
		snap("snap-young", "vol-1", 1),
		models.Snapshot{
			ID: "snap-tagged", VolumeID: "vol-1",
			StartTime: evalNow.AddDate(0, 0, -200),
			Tags:      map[string]string{"ProtectSnapshot": "true"},
		},
	)
	// Order snapshots oldest first.
	byVol["vol-1"] = []models.Snapshot{byVol["vol-1"][0], byVol["vol-1"][2], byVol["vol-1"][1]}

	pol := testPolicy()
	pol.MinSnapshotsToKeep = 0

	plan, err := Evaluate(volumes, byVol, pol, evalNow)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	for _, e := range plan.Entries {
		if e.Decision != models.DecisionKeep || e.Reason != models.ReasonCriticalVolume {
			t.Errorf("snapshot %s: got (%s, %s), want (KEEP, critical_volume)",
				e.Snapshot.ID, e.Decision, e.Reason)
		}
	}
}

func TestEvaluateProtectedTagOutranksAgeAndFloor(t *testing.T) {
	// Floor is already satisfied by three newer snapshots; the 100 day
	// old protected snapshot is still kept for its tag.
	protected := models.Snapshot{
		ID: "snap-protected", VolumeID: "vol-1",
		StartTime: evalNow.AddDate(0, 0, -100),
		Tags:      map[string]string{"ProtectSnapshot": "true"},
	}
	volumes, byVol := singleVolume(nil,
		protected,
		snap("snap-c", "vol-1", 20),
		snap("snap-b", "vol-1", 10),
		snap("snap-a", "vol-1", 5),
	)

	plan, err := Evaluate(volumes, byVol, testPolicy(), evalNow)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	e := decisionOf(t, plan, "snap-protected")
	if e.Decision != models.DecisionKeep || e.Reason != models.ReasonProtectedTag {
		t.Errorf("got (%s, %s), want (KEEP, protected_tag)", e.Decision, e.Reason)
	}
}

func TestEvaluateInUseKeptDespiteAge(t *testing.T) {
	// In-use snapshot older than retention and outside the floor.
	inUse := models.Snapshot{
		ID: "snap-ami", VolumeID: "vol-1",
		StartTime: evalNow.AddDate(0, 0, -300),
		InUse:     true,
	}
	volumes, byVol := singleVolume(nil,
		inUse,
		snap("snap-c", "vol-1", 90),
		snap("snap-b", "vol-1", 80),
		snap("snap-a", "vol-1", 70),
	)

	plan, err := Evaluate(volumes, byVol, testPolicy(), evalNow)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	e := decisionOf(t, plan, "snap-ami")
	if e.Decision != models.DecisionKeep || e.Reason != models.ReasonInUse {
		t.Errorf("got (%s, %s), want (KEEP, in_use)", e.Decision, e.Reason)
	}
}

func TestEvaluateReasonPriority(t *testing.T) {
	// protected_tag outranks in_use; critical_volume outranks both.
	both := models.Snapshot{
		ID: "snap-both", VolumeID: "vol-1",
		StartTime: evalNow.AddDate(0, 0, -100),
		Tags:      map[string]string{"ProtectSnapshot": "true"},
		InUse:     true,
	}
	volumes, byVol := singleVolume(nil, both)
	pol := testPolicy()
	pol.MinSnapshotsToKeep = 0

	plan, err := Evaluate(volumes, byVol, pol, evalNow)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if got := plan.Entries[0].Reason; got != models.ReasonProtectedTag {
		t.Errorf("protected+in-use: got reason %s, want protected_tag", got)
	}

	volumes, byVol = singleVolume(map[string]string{"CriticalVolume": "true"}, both)
	plan, err = Evaluate(volumes, byVol, pol, evalNow)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if got := plan.Entries[0].Reason; got != models.ReasonCriticalVolume {
		t.Errorf("critical volume: got reason %s, want critical_volume", got)
	}
}

func TestEvaluateFloorProtectsExactlyNewest(t *testing.T) {
	tests := []struct {
		name      string
		minKeep   int
		snapCount int
		wantFloor int
	}{
		{"floor smaller than set", 3, 5, 3},
		{"floor zero", 0, 5, 0},
		{"floor larger than set", 10, 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var snaps []models.Snapshot
			for i := 0; i < tt.snapCount; i++ {
				// All well beyond the retention age and untagged.
				snaps = append(snaps, snap(
					string(rune('a'+i)), "vol-1", 400-i))
			}
			volumes, byVol := singleVolume(nil, snaps...)

			pol := testPolicy()
			pol.MinSnapshotsToKeep = tt.minKeep

			plan, err := Evaluate(volumes, byVol, pol, evalNow)
			if err != nil {
				t.Fatalf("Evaluate() failed: %v", err)
			}
			floor := plan.CountByReason()[models.ReasonMinRetentionFloor]
			if floor != tt.wantFloor {
				t.Errorf("floor kept %d snapshots, want %d", floor, tt.wantFloor)
			}
			// Floor members must be the newest ones: the last wantFloor
			// entries of the oldest-first plan.
			for i, e := range plan.Entries {
				wantKeep := i >= len(plan.Entries)-tt.wantFloor
				if wantKeep && e.Reason != models.ReasonMinRetentionFloor {
					t.Errorf("entry %d (%s): got %s, want min_retention_floor", i, e.Snapshot.ID, e.Reason)
				}
				if !wantKeep && e.Decision != models.DecisionDelete {
					t.Errorf("entry %d (%s): got %s, want DELETE", i, e.Snapshot.ID, e.Decision)
				}
			}
		})
	}
}

func TestEvaluateFloorTieBreakByID(t *testing.T) {
	ts := evalNow.AddDate(0, 0, -200)
	a := models.Snapshot{ID: "snap-a", VolumeID: "vol-1", StartTime: ts}
	b := models.Snapshot{ID: "snap-b", VolumeID: "vol-1", StartTime: ts}
	volumes, byVol := singleVolume(nil, a, b)

	pol := testPolicy()
	pol.MinSnapshotsToKeep = 1

	plan, err := Evaluate(volumes, byVol, pol, evalNow)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	// Equal creation times: the greater ID ranks as newer.
	if e := decisionOf(t, plan, "snap-b"); e.Reason != models.ReasonMinRetentionFloor {
		t.Errorf("snap-b: got %s, want min_retention_floor", e.Reason)
	}
	if e := decisionOf(t, plan, "snap-a"); e.Decision != models.DecisionDelete {
		t.Errorf("snap-a: got %s, want DELETE", e.Decision)
	}
}

func TestEvaluateTagValueCaseInsensitive(t *testing.T) {
	tagged := models.Snapshot{
		ID: "snap-1", VolumeID: "vol-1",
		StartTime: evalNow.AddDate(0, 0, -100),
		Tags:      map[string]string{"ProtectSnapshot": "True"},
	}
	volumes, byVol := singleVolume(nil, tagged)
	pol := testPolicy()
	pol.MinSnapshotsToKeep = 0

	plan, err := Evaluate(volumes, byVol, pol, evalNow)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if got := plan.Entries[0].Reason; got != models.ReasonProtectedTag {
		t.Errorf("got reason %s, want protected_tag", got)
	}
}

func TestEvaluateAbsentTagNeverMatches(t *testing.T) {
	tagged := models.Snapshot{
		ID: "snap-1", VolumeID: "vol-1",
		StartTime: evalNow.AddDate(0, 0, -100),
		Tags:      map[string]string{"Name": "backup", "Team": "storage"},
	}
	volumes, byVol := singleVolume(map[string]string{"Env": "prod"}, tagged)
	pol := testPolicy()
	pol.MinSnapshotsToKeep = 0

	plan, err := Evaluate(volumes, byVol, pol, evalNow)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if got := plan.Entries[0].Decision; got != models.DecisionDelete {
		t.Errorf("got decision %s, want DELETE", got)
	}
}

func TestEvaluateIdempotentAndPure(t *testing.T) {
	volumes, byVol := singleVolume(map[string]string{"Env": "prod"},
		snap("snap-60", "vol-1", 60),
		snap("snap-10", "vol-1", 10),
	)

	volumesCopy := make([]models.Volume, len(volumes))
	copy(volumesCopy, volumes)
	byVolCopy := map[string][]models.Snapshot{}
	for k, v := range byVol {
		snaps := make([]models.Snapshot, len(v))
		copy(snaps, v)
		byVolCopy[k] = snaps
	}

	first, err := Evaluate(volumes, byVol, testPolicy(), evalNow)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	second, err := Evaluate(volumes, byVol, testPolicy(), evalNow)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("two evaluations of identical inputs produced different plans")
	}
	if !reflect.DeepEqual(volumes, volumesCopy) || !reflect.DeepEqual(byVol, byVolCopy) {
		t.Error("Evaluate() mutated its inputs")
	}
}

func TestEvaluateInvalidPolicy(t *testing.T) {
	volumes, byVol := singleVolume(nil, snap("snap-1", "vol-1", 10))
	pol := testPolicy()
	pol.MinSnapshotsToKeep = -1

	plan, err := Evaluate(volumes, byVol, pol, evalNow)
	if !errors.Is(err, policy.ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
	if plan != nil {
		t.Error("expected no plan on invalid policy")
	}
}

func TestEvaluateInvalidInventory(t *testing.T) {
	tests := []struct {
		name  string
		setup func() ([]models.Volume, map[string][]models.Snapshot)
	}{
		{
			"duplicate snapshot id",
			func() ([]models.Volume, map[string][]models.Snapshot) {
				return singleVolume(nil,
					snap("snap-1", "vol-1", 20),
					snap("snap-1", "vol-1", 10),
				)
			},
		},
		{
			"not sorted by creation time",
			func() ([]models.Volume, map[string][]models.Snapshot) {
				return singleVolume(nil,
					snap("snap-1", "vol-1", 10),
					snap("snap-2", "vol-1", 20),
				)
			},
		},
		{
			"snapshot under wrong volume",
			func() ([]models.Volume, map[string][]models.Snapshot) {
				return singleVolume(nil, snap("snap-1", "vol-2", 10))
			},
		},
		{
			"snapshot group without volume entry",
			func() ([]models.Volume, map[string][]models.Snapshot) {
				volumes, byVol := singleVolume(nil, snap("snap-1", "vol-1", 10))
				byVol["vol-orphan"] = []models.Snapshot{snap("snap-2", "vol-orphan", 10)}
				return volumes, byVol
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			volumes, byVol := tt.setup()
			plan, err := Evaluate(volumes, byVol, testPolicy(), evalNow)
			if !errors.Is(err, ErrInvalidInventory) {
				t.Fatalf("expected ErrInvalidInventory, got %v", err)
			}
			if plan != nil {
				t.Error("expected no plan on invalid inventory")
			}
		})
	}
}

func TestEvaluateOutputOrdering(t *testing.T) {
	volumes := []models.Volume{{ID: "vol-2"}, {ID: "vol-1"}}
	byVol := map[string][]models.Snapshot{
		"vol-1": {snap("snap-1a", "vol-1", 20), snap("snap-1b", "vol-1", 10)},
		"vol-2": {snap("snap-2a", "vol-2", 40), snap("snap-2b", "vol-2", 5)},
	}

	plan, err := Evaluate(volumes, byVol, testPolicy(), evalNow)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	var order []string
	for _, e := range plan.Entries {
		order = append(order, e.Snapshot.ID)
	}
	want := []string{"snap-2a", "snap-2b", "snap-1a", "snap-1b"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("plan order %v, want %v", order, want)
	}
}

func TestEvaluateEmptyInventory(t *testing.T) {
	plan, err := Evaluate(nil, nil, testPolicy(), evalNow)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if len(plan.Entries) != 0 {
		t.Errorf("expected empty plan, got %d entries", len(plan.Entries))
	}
}

func TestEvaluateUnexpiredNeverDeleted(t *testing.T) {
	// More young snapshots than the floor holds: none may be deleted.
	volumes, byVol := singleVolume(nil,
		snap("snap-e", "vol-1", 25),
		snap("snap-d", "vol-1", 20),
		snap("snap-c", "vol-1", 15),
		snap("snap-b", "vol-1", 10),
		snap("snap-a", "vol-1", 5),
	)

	plan, err := Evaluate(volumes, byVol, testPolicy(), evalNow)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	for _, e := range plan.Entries {
		if e.Decision != models.DecisionKeep {
			t.Errorf("snapshot %s younger than retention was marked %s", e.Snapshot.ID, e.Decision)
		}
		if e.Reason != models.ReasonTooRecent {
			t.Errorf("snapshot %s: got reason %s, want too_recent", e.Snapshot.ID, e.Reason)
		}
	}
}
