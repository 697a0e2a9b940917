package preprocess

import (
	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
)

// ValidateOptions controls which points Validate discards.
type ValidateOptions struct {
	// DropZeroRange discards points whose distance is exactly 0, which
	// sensors emit for beams with no return.
	DropZeroRange bool
}

// DefaultValidateOptions returns the options used by the pipeline.
func DefaultValidateOptions() ValidateOptions {
	return ValidateOptions{DropZeroRange: true}
}

// ValidationReport breaks down why points were dropped. Each dropped
// point is counted once, under the first rule it failed.
type ValidationReport struct {
	NonFinite        int // non-finite x, y or z
	InvalidAttribute int // non-finite or negative intensity or distance, non-finite timestamp
	ZeroRange        int // distance == 0 with DropZeroRange
}

// Dropped returns the total number of points removed.
func (r ValidationReport) Dropped() int {
	return r.NonFinite + r.InvalidAttribute + r.ZeroRange
}

// Validate returns a cloud holding only the usable points of c, in their
// original order with attributes kept in lockstep. The returned cloud's
// provenance adds the dropped count to any earlier total.
func Validate(c *cloud.PointCloud, opts ValidateOptions) (*cloud.PointCloud, ValidationReport, error) {
	var report ValidationReport
	if c.Len() == 0 {
		return nil, report, &cloud.EmptyDataError{Stage: "validate"}
	}
	source := c.Provenance().Source
	intensity, hasIntensity := c.Intensity()
	distance, hasDistance := c.Distance()
	timestamp, hasTimestamp := c.Timestamp()

	keep := make([]int, 0, c.Len())
	for i := 0; i < c.Len(); i++ {
		if !c.Point(i).Finite() {
			report.NonFinite++
			continue
		}
		if hasIntensity && !validMagnitude(intensity[i]) {
			report.InvalidAttribute++
			continue
		}
		if hasDistance && !validMagnitude(distance[i]) {
			report.InvalidAttribute++
			continue
		}
		if hasTimestamp && !cloud.IsFinite(timestamp[i]) {
			report.InvalidAttribute++
			continue
		}
		if opts.DropZeroRange && hasDistance && distance[i] == 0 {
			report.ZeroRange++
			continue
		}
		keep = append(keep, i)
	}

	if len(keep) == 0 {
		return nil, report, &cloud.EmptyDataError{Source: source, Stage: "validate"}
	}
	out, err := c.Select(keep)
	if err != nil {
		return nil, report, err
	}
	prov := c.Provenance()
	prov.DroppedPoints += report.Dropped()
	return out.WithProvenance(prov), report, nil
}

// validMagnitude reports whether v is a usable intensity or distance.
func validMagnitude(v float64) bool {
	return cloud.IsFinite(v) && v >= 0
}
