// Package stats summarises point clouds for reports and charts.
//
// Responsibilities: per-axis and per-attribute summaries (Analyze),
// fixed-width histograms (Histograms) and the info-panel lines shown next
// to a rendered cloud (Statistics.Lines).
//
// Dependency rule: stats depends only on cloud.
package stats
