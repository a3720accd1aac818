package policy

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidPolicy indicates a retention policy that must not be
// evaluated. It is fatal for the run.
var ErrInvalidPolicy = errors.New("invalid retention policy")

// RetentionPolicy is the immutable configuration of a cleanup run.
type RetentionPolicy struct {
	// RetentionAge is the minimum age a snapshot must reach before it
	// becomes eligible for deletion.
	RetentionAge time.Duration

	// MinSnapshotsToKeep is the number of most-recent snapshots per
	// volume that are never deleted regardless of age.
	MinSnapshotsToKeep int

	// Snapshots tagged ProtectedTagKey=ProtectedTagValue are kept.
	ProtectedTagKey   string
	ProtectedTagValue string

	// Every snapshot of a volume tagged CriticalTagKey=CriticalTagValue
	// is kept.
	CriticalTagKey   string
	CriticalTagValue string

	// DryRun reports intended deletions without performing them.
	DryRun bool
}

// Default returns the policy used when nothing is configured.
func Default() RetentionPolicy {
	return RetentionPolicy{
		RetentionAge:       30 * 24 * time.Hour,
		MinSnapshotsToKeep: 3,
		ProtectedTagKey:    "ProtectSnapshot",
		ProtectedTagValue:  "true",
		CriticalTagKey:     "CriticalVolume",
		CriticalTagValue:   "true",
		DryRun:             true,
	}
}

// Validate rejects policies that would make the floor or age computation
// meaningless.
func (p RetentionPolicy) Validate() error {
	if p.MinSnapshotsToKeep < 0 {
		return fmt.Errorf("%w: minSnapshotsToKeep must be >= 0, got %d",
			ErrInvalidPolicy, p.MinSnapshotsToKeep)
	}
	if p.RetentionAge < 0 {
		return fmt.Errorf("%w: retentionAge must not be negative", ErrInvalidPolicy)
	}
	return nil
}

// ProtectsSnapshot reports whether the snapshot tags carry the protected
// marker. A missing tag never matches.
func (p RetentionPolicy) ProtectsSnapshot(tags map[string]string) bool {
	return tagMatches(tags, p.ProtectedTagKey, p.ProtectedTagValue)
}

// MarksVolumeCritical reports whether the volume tags carry the critical
// marker. A missing tag never matches.
func (p RetentionPolicy) MarksVolumeCritical(tags map[string]string) bool {
	return tagMatches(tags, p.CriticalTagKey, p.CriticalTagValue)
}

// Tag values compare case-insensitively so Tag=True and Tag=true both
// match the configured marker.
func tagMatches(tags map[string]string, key, value string) bool {
	if key == "" {
		return false
	}
	v, ok := tags[key]
	if !ok {
		return false
	}
	return strings.EqualFold(v, value)
}
