// Package render turns prepared point clouds into viewable artefacts.
//
// Responsibilities: interactive HTML charts (go-echarts) of the cloud and
// its histograms, static PNG projections and histograms (gonum/plot) and
// a plain-text statistics report.
// Key types: View, Options.
//
// Dependency rule: render consumes cloud, colorize and stats output and
// never modifies a cloud. It performs no loading or preprocessing.
package render
