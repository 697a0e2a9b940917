package sampling

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
)

// SampleSize returns how many points Sample keeps from n at ratio:
// max(1, round(ratio*n)), capped at n.
func SampleSize(n int, ratio float64) int {
	k := int(math.Round(ratio * float64(n)))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

// Sample returns a uniformly random subset of c holding SampleSize(n,
// ratio) distinct points in their original relative order. A non-nil seed
// makes the selection reproducible. ratio must be in (0, 1]; ratio 1
// returns a copy of c.
func Sample(c *cloud.PointCloud, ratio float64, seed *int64) (*cloud.PointCloud, error) {
	if math.IsNaN(ratio) || ratio <= 0 || ratio > 1 {
		return nil, &cloud.InvalidParameterError{Name: "sample ratio", Value: ratio, Reason: "must be in (0, 1]"}
	}
	n := c.Len()
	if n == 0 {
		return nil, &cloud.EmptyDataError{Stage: "sample"}
	}

	k := SampleSize(n, ratio)
	idxs := make([]int, k)
	if k == n {
		for i := range idxs {
			idxs[i] = i
		}
		return c.Select(idxs)
	}

	var src rand.Source
	if seed != nil {
		s := uint64(*seed)
		src = rand.NewPCG(s, s^0x9e3779b97f4a7c15)
	}
	sampleuv.WithoutReplacement(idxs, n, src)
	sort.Ints(idxs)
	return c.Select(idxs)
}
