package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuiicKi/LidarViz/internal/fsutil"
	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
	"github.com/YuiicKi/LidarViz/internal/lidar/colorize"
	"github.com/YuiicKi/LidarViz/internal/lidar/stats"
	"github.com/YuiicKi/LidarViz/internal/testutil"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func colored(t *testing.T, c *cloud.PointCloud) ([]float64, []colorize.RGB) {
	t.Helper()
	values, err := colorize.Colorize(c, colorize.Height)
	require.NoError(t, err)
	rgb, err := colorize.ToRGB(values, colorize.Viridis)
	require.NoError(t, err)
	return values, rgb
}

func TestParseView(t *testing.T) {
	for in, want := range map[string]View{"3d": View3D, "XY": ViewXY, " xz ": ViewXZ, "yz": ViewYZ} {
		got, err := ParseView(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseView("iso")
	var ipe *cloud.InvalidParameterError
	assert.True(t, errors.As(err, &ipe))
	assert.Equal(t, "View(9)", View(9).String())
}

func TestStride(t *testing.T) {
	assert.Equal(t, 1, stride(100, 0))
	assert.Equal(t, 1, stride(100, 100))
	assert.Equal(t, 2, stride(101, 100))
	assert.Equal(t, 10, stride(1000, 100))
}

func TestRenderHTML_Views(t *testing.T) {
	c := testutil.RandomCloud(t, 500, 7, true)
	values, _ := colored(t, c)

	for _, v := range []View{View3D, ViewXY, ViewXZ, ViewYZ} {
		t.Run(v.String(), func(t *testing.T) {
			var buf bytes.Buffer
			err := RenderHTML(&buf, c, values, Options{View: v, Title: "Scan 42", MaxPoints: 100})
			require.NoError(t, err)
			out := buf.String()
			assert.Contains(t, out, "<html")
			assert.Contains(t, out, "Scan 42")
			assert.Contains(t, out, "#440154", "viridis stops feed the visual map")
		})
	}
}

func TestRenderHTML_RampStops(t *testing.T) {
	c := testutil.RandomCloud(t, 20, 1, false)
	values, _ := colored(t, c)
	stops, err := rampStops(colorize.BlackBody)
	require.NoError(t, err)
	require.Len(t, stops, 10)

	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, c, values, Options{View: ViewXY, Ramp: colorize.BlackBody}))
	assert.Contains(t, buf.String(), stops[9])
}

func TestRenderHTML_Errors(t *testing.T) {
	c := testutil.RandomCloud(t, 10, 1, false)
	values, _ := colored(t, c)

	var empty *cloud.EmptyDataError
	err := RenderHTML(&bytes.Buffer{}, nil, nil, Options{})
	assert.True(t, errors.As(err, &empty))

	var ipe *cloud.InvalidParameterError
	err = RenderHTML(&bytes.Buffer{}, c, values[:5], Options{})
	assert.True(t, errors.As(err, &ipe))

	err = RenderHTML(&bytes.Buffer{}, c, values, Options{View: View(9)})
	assert.True(t, errors.As(err, &ipe))
}

func TestRenderHistogramsHTML(t *testing.T) {
	c := testutil.RandomCloud(t, 200, 3, true)
	hists, err := stats.Histograms(c, 12)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderHistogramsHTML(&buf, hists, Options{Title: "Stats"}))
	out := buf.String()
	for _, name := range []string{"x", "y", "z", "distance", "intensity"} {
		assert.Contains(t, out, name+" distribution")
	}

	var empty *cloud.EmptyDataError
	assert.True(t, errors.As(RenderHistogramsHTML(&buf, nil, Options{}), &empty))
}

func TestWriteProjectionPNG(t *testing.T) {
	c := testutil.RandomCloud(t, 300, 11, false)
	_, rgb := colored(t, c)

	var buf bytes.Buffer
	require.NoError(t, WriteProjectionPNG(&buf, c, rgb, Options{View: ViewXZ, MaxPoints: 50}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))

	var ipe *cloud.InvalidParameterError
	err := WriteProjectionPNG(&buf, c, rgb, Options{View: View3D})
	require.True(t, errors.As(err, &ipe))
	assert.Equal(t, "view", ipe.Name)

	err = WriteProjectionPNG(&buf, c, rgb[:1], Options{View: ViewXY})
	assert.True(t, errors.As(err, &ipe))
}

func TestSavePNG(t *testing.T) {
	c := testutil.RandomCloud(t, 50, 5, false)
	_, rgb := colored(t, c)
	mfs := fsutil.NewMemoryFileSystem()

	require.NoError(t, SavePNG(mfs, "/out/plots/scan_xy.png", c, rgb, Options{View: ViewXY}))
	data, err := mfs.ReadFile("/out/plots/scan_xy.png")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))
	assert.True(t, fsutil.Exists(mfs, "/out/plots"))
}

func TestWriteHistogramPNG(t *testing.T) {
	h, err := stats.NewHistogram("z", []float64{0, 1, 1, 2, 3, 3, 3}, 3)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WriteHistogramPNG(&buf, h))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))

	var ipe *cloud.InvalidParameterError
	assert.True(t, errors.As(WriteHistogramPNG(&buf, stats.Histogram{Name: "bad"}), &ipe))
}

func TestWriteReport(t *testing.T) {
	c := testutil.MustCloud(t, cloud.FormatCSV,
		[]cloud.Point{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}},
		cloud.Attributes{Intensity: []float64{0.5, 0.8}})
	s, err := stats.Analyze(c)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, s))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Points: 2\n"))
	assert.Contains(t, out, "X range: 1.00 to 4.00 m")
	assert.Contains(t, out, "intensity")
	assert.NotContains(t, out, "timestamp")

	var empty *cloud.EmptyDataError
	assert.True(t, errors.As(WriteReport(&buf, nil), &empty))
}
