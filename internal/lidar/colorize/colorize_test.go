package colorize

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
	"github.com/YuiicKi/LidarViz/internal/lidar/formats"
	"github.com/YuiicKi/LidarViz/internal/testutil"
)

func TestColorize_Height(t *testing.T) {
	t.Parallel()

	c := testutil.MustCloud(t, cloud.FormatCSV,
		[]cloud.Point{{Z: 10}, {Z: 0}, {Z: 5}, {Z: 2.5}}, cloud.Attributes{})
	got, err := Colorize(c, Height)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0.5, 0.25}, got)
}

func TestColorize_RangeProperty(t *testing.T) {
	t.Parallel()

	c := testutil.RandomCloud(t, 400, 21, true)
	for _, s := range []Scheme{Height, Intensity, Distance} {
		got, err := Colorize(c, s)
		require.NoError(t, err, s.String())
		require.Len(t, got, c.Len())
		for _, v := range got {
			assert.True(t, v >= 0 && v <= 1, "%s value %v out of range", s, v)
		}
	}
}

func TestColorize_Degenerate(t *testing.T) {
	t.Parallel()

	c := testutil.MustCloud(t, cloud.FormatPCD,
		[]cloud.Point{{X: 1, Z: 3}, {X: 2, Z: 3}, {X: 3, Z: 3}},
		cloud.Attributes{Intensity: []float64{7, 7, 7}})
	for _, s := range []Scheme{Height, Intensity} {
		got, err := Colorize(c, s)
		require.NoError(t, err)
		assert.Equal(t, []float64{0.5, 0.5, 0.5}, got)
	}
}

func TestColorize_MissingIntensityFromPLY(t *testing.T) {
	t.Parallel()

	body := "ply\nformat ascii 1.0\nelement vertex 2\nproperty float x\nproperty float y\nproperty float z\nend_header\n0 0 0\n1 1 1\n"
	c, err := formats.PLYReader{}.Read(strings.NewReader(body), "noint.ply")
	require.NoError(t, err)

	_, err = Colorize(c, Intensity)
	e := testutil.AssertErrorAs[*cloud.MissingAttributeError](t, err)
	assert.Equal(t, cloud.AttrIntensity, e.Attribute)
	assert.Equal(t, "intensity", e.Scheme)

	_, err = Colorize(c, Distance)
	testutil.AssertErrorAs[*cloud.MissingAttributeError](t, err)
}

func TestColorize_Errors(t *testing.T) {
	t.Parallel()

	_, err := Colorize(nil, Height)
	testutil.AssertErrorAs[*cloud.EmptyDataError](t, err)

	c := testutil.MustCloud(t, cloud.FormatCSV, []cloud.Point{{Z: 1}, {Z: math.Inf(1)}}, cloud.Attributes{})
	_, err = Colorize(c, Height)
	testutil.AssertErrorAs[*cloud.InvalidParameterError](t, err)

	_, err = Colorize(c, Scheme(9))
	testutil.AssertErrorAs[*cloud.InvalidParameterError](t, err)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	in := []float64{-2, 0, 2}
	assert.Equal(t, []float64{0, 0.5, 1}, Normalize(in))
	assert.Equal(t, []float64{-2, 0, 2}, in, "input must not be modified")
	assert.Empty(t, Normalize(nil))
	assert.Equal(t, []float64{0.5}, Normalize([]float64{42}))
}

func TestParseScheme(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Scheme{"height": Height, " Intensity ": Intensity, "DISTANCE": Distance} {
		got, err := ParseScheme(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseScheme("rainbow")
	testutil.AssertErrorAs[*cloud.InvalidParameterError](t, err)
	assert.Equal(t, "Scheme(7)", Scheme(7).String())
}
