package models

// Decision is the verdict for a single snapshot.
type Decision string

const (
	DecisionKeep   Decision = "KEEP"
	DecisionDelete Decision = "DELETE"
)

// Reason explains why a snapshot got its decision.
type Reason string

const (
	ReasonTooRecent         Reason = "too_recent"
	ReasonProtectedTag      Reason = "protected_tag"
	ReasonCriticalVolume    Reason = "critical_volume"
	ReasonInUse             Reason = "in_use"
	ReasonMinRetentionFloor Reason = "min_retention_floor"
	ReasonEligibleExpired   Reason = "eligible_expired"
)

// PlanEntry is the decision for one snapshot.
type PlanEntry struct {
	Snapshot Snapshot
	Decision Decision
	Reason   Reason
}

// DeletionPlan lists one entry per snapshot considered, grouped by
// volume in input order with snapshots oldest first inside a volume.
type DeletionPlan struct {
	Entries []PlanEntry
}

// Deletes returns the entries marked for deletion, in plan order.
func (p *DeletionPlan) Deletes() []PlanEntry {
	var out []PlanEntry
	for _, e := range p.Entries {
		if e.Decision == DecisionDelete {
			out = append(out, e)
		}
	}
	return out
}

// CountByReason tallies plan entries per reason code.
func (p *DeletionPlan) CountByReason() map[Reason]int {
	counts := make(map[Reason]int)
	for _, e := range p.Entries {
		counts[e.Reason]++
	}
	return counts
}
