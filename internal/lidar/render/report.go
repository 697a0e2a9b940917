package render

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
	"github.com/YuiicKi/LidarViz/internal/lidar/stats"
)

// WriteReport writes the info-panel lines followed by a per-column
// summary table.
func WriteReport(w io.Writer, s *stats.Statistics) error {
	if s == nil {
		return &cloud.EmptyDataError{Stage: "report"}
	}
	for _, line := range s.Lines() {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "column\tmin\tmax\tmean\tstd\t")
	row := func(name string, sum stats.Summary) {
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\t%.3f\t\n", name, sum.Min, sum.Max, sum.Mean, sum.Std)
	}
	row("x", s.X)
	row("y", s.Y)
	row("z", s.Z)
	for _, a := range []struct {
		name string
		sum  *stats.Summary
	}{
		{cloud.AttrIntensity, s.Intensity},
		{cloud.AttrDistance, s.Distance},
		{cloud.AttrTimestamp, s.Timestamp},
	} {
		if a.sum != nil {
			row(a.name, *a.sum)
		}
	}
	return tw.Flush()
}
