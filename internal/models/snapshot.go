package models

import "time"

// Snapshot is an immutable view of a single EBS snapshot as reported by
// the inventory source. InUse is true when the snapshot is referenced by
// a registered AMI, which makes deletion unsafe.
type Snapshot struct {
	ID          string
	VolumeID    string
	StartTime   time.Time
	Tags        map[string]string
	InUse       bool
	SizeGB      int32
	Description string
}

// Volume carries the identifier and tags of a snapshot's source volume.
// A volume that no longer exists is represented with nil Tags so that
// tag lookups simply miss.
type Volume struct {
	ID   string
	Tags map[string]string
}

// Inventory is the per-run snapshot inventory handed to the evaluator.
// SnapshotsByVolume values are sorted by StartTime ascending and every
// key has a corresponding entry in Volumes.
type Inventory struct {
	Volumes           []Volume
	SnapshotsByVolume map[string][]Snapshot
}
