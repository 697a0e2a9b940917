package sampling

import (
	"math"
	"sort"

	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
)

type voxelKey struct{ x, y, z int64 }

type voxelCell struct {
	sumX, sumY, sumZ float64
	members          []int
}

// VoxelDownsample keeps one point per cubic voxel of edge leafSize: the
// member closest to the mean of the voxel's points, ties going to the
// earlier point. Survivors keep their original order. leafSize <= 0
// returns c unchanged.
func VoxelDownsample(c *cloud.PointCloud, leafSize float64) (*cloud.PointCloud, error) {
	if math.IsNaN(leafSize) || math.IsInf(leafSize, 0) {
		return nil, &cloud.InvalidParameterError{Name: "voxel leaf size", Value: leafSize, Reason: "must be finite"}
	}
	if c.Len() == 0 {
		return nil, &cloud.EmptyDataError{Stage: "downsample"}
	}
	if leafSize <= 0 {
		return c, nil
	}

	cells := make(map[voxelKey]*voxelCell)
	for i := 0; i < c.Len(); i++ {
		p := c.Point(i)
		key := voxelKey{
			x: int64(math.Floor(p.X / leafSize)),
			y: int64(math.Floor(p.Y / leafSize)),
			z: int64(math.Floor(p.Z / leafSize)),
		}
		cell := cells[key]
		if cell == nil {
			cell = &voxelCell{}
			cells[key] = cell
		}
		cell.sumX += p.X
		cell.sumY += p.Y
		cell.sumZ += p.Z
		cell.members = append(cell.members, i)
	}

	keep := make([]int, 0, len(cells))
	for _, cell := range cells {
		n := float64(len(cell.members))
		centroid := cloud.Point{X: cell.sumX / n, Y: cell.sumY / n, Z: cell.sumZ / n}
		best, bestDist := cell.members[0], math.Inf(1)
		for _, i := range cell.members {
			if d := c.Point(i).Norm(centroid); d < bestDist {
				best, bestDist = i, d
			}
		}
		keep = append(keep, best)
	}
	sort.Ints(keep)
	return c.Select(keep)
}
