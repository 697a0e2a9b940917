// Package formats owns the ingestion edge of the point-cloud pipeline.
//
// Responsibilities: decoding CSV, PCD and PLY inputs into the canonical
// cloud.PointCloud, detecting the format of an input, and writing clouds
// back out as CSV, PCD or PLY.
// Key types: Reader, Options, ColumnMap.
//
// Dependency rule: formats may depend on cloud, never on preprocess,
// sampling, colorize or stats. Readers do no validation beyond what is
// needed to decode a record; non-finite values are passed through for the
// validator to drop.
package formats
