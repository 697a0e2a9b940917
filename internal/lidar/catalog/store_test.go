package catalog

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
	"github.com/YuiicKi/LidarViz/internal/lidar/stats"
	"github.com/YuiicKi/LidarViz/internal/monitoring"
	"github.com/YuiicKi/LidarViz/internal/testutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })

	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func scenarioCloud(t *testing.T) *cloud.PointCloud {
	t.Helper()
	c := testutil.MustCloud(t, cloud.FormatCSV,
		[]cloud.Point{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}},
		cloud.Attributes{Intensity: []float64{0.5, 0.8}, Distance: []float64{3.7416573867739413, 8.774964387392123}})
	return c.WithProvenance(cloud.Provenance{Source: "/data/scan.csv", SkippedRecords: 1, DroppedPoints: 2})
}

func TestOpen_Migrates(t *testing.T) {
	s := openTestStore(t)
	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// Re-running is a no-op.
	require.NoError(t, s.MigrateUp())
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := Open(path)
	require.NoError(t, err)
	rec, err := s.RecordCloud(scenarioCloud(t), nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetCloud(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Points)
}

func TestMigrateDown(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.MigrateDown())
	version, _, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	_, err = s.ListClouds(0)
	assert.Error(t, err, "tables should be gone")
}

func TestRecordAndGetCloud(t *testing.T) {
	s := openTestStore(t)
	c := scenarioCloud(t)
	st, err := stats.Analyze(c)
	require.NoError(t, err)

	rec, err := s.RecordCloud(c, st)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)

	got, err := s.GetCloud(rec.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Errorf("GetCloud mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "CSV", got.Format)
	assert.Equal(t, "/data/scan.csv", got.Source)
	assert.Equal(t, 1, got.SkippedRecords)
	assert.Equal(t, 2, got.DroppedPoints)
	assert.Len(t, got.Stats, 5)
	assert.InDelta(t, 0.65, got.Stats[cloud.AttrIntensity].Mean, 1e-12)
	assert.InDelta(t, 1.5, got.Stats["x"].Std, 1e-12)
}

func TestRecordCloud_WithoutStats(t *testing.T) {
	s := openTestStore(t)
	rec, err := s.RecordCloud(scenarioCloud(t), nil)
	require.NoError(t, err)
	got, err := s.GetCloud(rec.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Stats)
}

func TestRecordCloud_Empty(t *testing.T) {
	s := openTestStore(t)
	var empty *cloud.EmptyDataError
	_, err := s.RecordCloud(nil, nil)
	assert.True(t, errors.As(err, &empty))
}

func TestGetCloud_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetCloud("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListClouds(t *testing.T) {
	s := openTestStore(t)
	var ids []string
	for i := 0; i < 3; i++ {
		rec, err := s.RecordCloud(scenarioCloud(t), nil)
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	all, err := s.ListClouds(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{all[0].ID, all[1].ID, all[2].ID})

	latest, err := s.ListClouds(2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, ids[2], latest[0].ID)
}

func TestSamples(t *testing.T) {
	s := openTestStore(t)
	rec, err := s.RecordCloud(scenarioCloud(t), nil)
	require.NoError(t, err)

	seed := int64(42)
	first, err := s.RecordSample(rec.ID, 0.5, &seed, 1)
	require.NoError(t, err)
	seed = 7 // the record keeps its own copy
	second, err := s.RecordSample(rec.ID, 1.0, nil, 2)
	require.NoError(t, err)

	samples, err := s.ListSamples(rec.ID)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	if diff := cmp.Diff([]SampleRecord{first, second}, samples); diff != "" {
		t.Errorf("ListSamples mismatch (-want +got):\n%s", diff)
	}
	require.NotNil(t, samples[0].Seed)
	assert.Equal(t, int64(42), *samples[0].Seed)
	assert.Nil(t, samples[1].Seed)

	_, err = s.RecordSample("missing", 0.5, nil, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	none, err := s.ListSamples("missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}
