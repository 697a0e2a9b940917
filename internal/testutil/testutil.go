// Package testutil provides shared test helpers and point-cloud fixtures.
package testutil

import (
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
)

// ScenarioCSV is the two-row CSV used across packages: intensity present,
// distance column present but empty.
const ScenarioCSV = "Points_m_XYZ:0,Points_m_XYZ:1,Points_m_XYZ:2,intensity,distance\n" +
	"1,2,3,0.5,\n" +
	"4,5,6,0.8,\n"

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertErrorAs fails the test unless err matches target's type via
// errors.As, and returns the matched value.
func AssertErrorAs[E error](t testing.TB, err error) E {
	t.Helper()
	var target E
	if !errors.As(err, &target) {
		t.Fatalf("error %v (%T) is not a %T", err, err, target)
	}
	return target
}

// AssertClose fails the test if got and want differ by more than tol.
func AssertClose(t testing.TB, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %v, want %v (±%g)", name, got, want, tol)
	}
}

// WriteFile writes content to dir/name, creating dir if needed, and
// returns the full path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create fixture dir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}

// RandomCloud builds an n-point CSV cloud with coordinates in [-50, 50)
// from a seeded source. Intensity in [0, 1) and a derived distance are
// attached when requested.
func RandomCloud(t testing.TB, n int, seed uint64, withIntensity bool) *cloud.PointCloud {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed))
	pts := make([]cloud.Point, n)
	dist := make([]float64, n)
	var intensity []float64
	if withIntensity {
		intensity = make([]float64, n)
	}
	for i := range pts {
		pts[i] = cloud.Point{X: rng.Float64()*100 - 50, Y: rng.Float64()*100 - 50, Z: rng.Float64()*10 - 2}
		dist[i] = pts[i].Norm(cloud.Point{})
		if withIntensity {
			intensity[i] = rng.Float64()
		}
	}
	c, err := cloud.New(cloud.FormatCSV, pts, cloud.Attributes{Intensity: intensity, Distance: dist})
	if err != nil {
		t.Fatalf("RandomCloud: %v", err)
	}
	return c
}

// MustCloud builds a cloud from points and attributes, failing the test on
// error.
func MustCloud(t testing.TB, format cloud.Format, pts []cloud.Point, attrs cloud.Attributes) *cloud.PointCloud {
	t.Helper()
	c, err := cloud.New(format, pts, attrs)
	if err != nil {
		t.Fatalf("cloud.New: %v", err)
	}
	return c
}
