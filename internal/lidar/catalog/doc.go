// Package catalog records processed point clouds in SQLite.
//
// Responsibilities: schema migrations (embedded, golang-migrate), one row
// per recorded cloud with its provenance, per-attribute summaries and the
// samples drawn from it.
// Key types: Store, CloudRecord, SampleRecord.
//
// Dependency rule: catalog stores derived facts only. Point data itself
// is never written to the database.
package catalog
