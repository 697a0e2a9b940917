package preprocess

import (
	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
)

// EnrichOptions controls derived-attribute computation.
type EnrichOptions struct {
	// Origin is the sensor position distances are measured from.
	Origin [3]float64
	// Force recomputes distance even when the cloud already carries one.
	Force bool
}

// Enrich returns c with a distance attribute. When c has none (or Force
// is set) distance is the Euclidean norm of each point relative to
// Origin. Intensity is never derived. A cloud that already has distance
// is returned as is, so Enrich is idempotent.
func Enrich(c *cloud.PointCloud, opts EnrichOptions) (*cloud.PointCloud, error) {
	if c.Len() == 0 {
		return nil, &cloud.EmptyDataError{Stage: "enrich"}
	}
	if c.HasDistance() && !opts.Force {
		return c, nil
	}
	origin := cloud.Point{X: opts.Origin[0], Y: opts.Origin[1], Z: opts.Origin[2]}
	dist := make([]float64, c.Len())
	for i := range dist {
		dist[i] = c.Point(i).Norm(origin)
	}
	return c.WithDistance(dist)
}
