// Package cloud owns the canonical point-cloud model.
//
// Responsibilities: the PointCloud snapshot (coordinates plus optional
// per-point intensity, distance and timestamp), the source format tag,
// load provenance, and the typed errors shared by every pipeline stage.
// Key types: PointCloud, Point, Attributes, Provenance.
//
// A PointCloud is never modified after construction. Every derivation
// (Select, WithDistance, WithProvenance) returns a new snapshot, so a
// cloud may be handed to any number of readers without locking.
//
// Dependency rule: cloud imports nothing from the rest of internal/lidar.
package cloud
