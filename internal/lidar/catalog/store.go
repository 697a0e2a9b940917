package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
	"github.com/YuiicKi/LidarViz/internal/lidar/stats"
)

// ErrNotFound is returned when a cloud or sample id is unknown.
var ErrNotFound = errors.New("catalog: record not found")

// Store is a SQLite-backed catalog of processed clouds.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// CloudRecord describes one recorded cloud.
type CloudRecord struct {
	ID             string
	Source         string
	Format         string
	Points         int
	SkippedRecords int
	DroppedPoints  int
	RecordedAt     time.Time
	// Stats holds the summary of every axis and present attribute, keyed
	// by column name. Empty when the cloud was recorded without stats.
	Stats map[string]stats.Summary
}

// SampleRecord describes one sample drawn from a recorded cloud.
type SampleRecord struct {
	ID         string
	CloudID    string
	Ratio      float64
	Seed       *int64
	Points     int
	RecordedAt time.Time
}

// Open opens (or creates) the catalog at path and migrates it to the
// latest schema. ":memory:" gives a private in-memory catalog.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serialises
	// writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordCloud stores c's provenance and, when st is non-nil, its
// per-column summaries under a new id.
func (s *Store) RecordCloud(c *cloud.PointCloud, st *stats.Statistics) (CloudRecord, error) {
	if c.Len() == 0 {
		return CloudRecord{}, &cloud.EmptyDataError{Stage: "catalog"}
	}
	prov := c.Provenance()
	rec := CloudRecord{
		ID:             uuid.NewString(),
		Source:         prov.Source,
		Format:         c.Format().String(),
		Points:         c.Len(),
		SkippedRecords: prov.SkippedRecords,
		DroppedPoints:  prov.DroppedPoints,
		RecordedAt:     s.now().UTC(),
		Stats:          map[string]stats.Summary{},
	}
	if st != nil {
		rec.Stats = st.Attributes()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return CloudRecord{}, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO lidar_clouds
		(cloud_id, source, format, point_count, skipped_records, dropped_points, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Source, rec.Format, rec.Points, rec.SkippedRecords, rec.DroppedPoints, rec.RecordedAt.UnixNano())
	if err != nil {
		return CloudRecord{}, fmt.Errorf("failed to insert cloud: %w", err)
	}
	for _, name := range sortedKeys(rec.Stats) {
		sum := rec.Stats[name]
		_, err = tx.Exec(`INSERT INTO lidar_cloud_stats
			(cloud_id, attribute, min_value, max_value, mean_value, std_value)
			VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, name, sum.Min, sum.Max, sum.Mean, sum.Std)
		if err != nil {
			return CloudRecord{}, fmt.Errorf("failed to insert %s stats: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return CloudRecord{}, err
	}
	return rec, nil
}

func sortedKeys(m map[string]stats.Summary) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetCloud returns the record with the given id, stats included.
func (s *Store) GetCloud(id string) (CloudRecord, error) {
	row := s.db.QueryRow(`SELECT cloud_id, source, format, point_count, skipped_records, dropped_points, recorded_at
		FROM lidar_clouds WHERE cloud_id = ?`, id)
	rec, err := scanCloud(row)
	if errors.Is(err, sql.ErrNoRows) {
		return CloudRecord{}, fmt.Errorf("cloud %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return CloudRecord{}, err
	}
	if rec.Stats, err = s.cloudStats(id); err != nil {
		return CloudRecord{}, err
	}
	return rec, nil
}

// ListClouds returns the most recently recorded clouds, newest first.
// limit <= 0 returns all of them. Stats are not loaded.
func (s *Store) ListClouds(limit int) ([]CloudRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT cloud_id, source, format, point_count, skipped_records, dropped_points, recorded_at
		FROM lidar_clouds ORDER BY recorded_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CloudRecord
	for rows.Next() {
		rec, err := scanCloud(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCloud(row scanner) (CloudRecord, error) {
	var rec CloudRecord
	var recordedAt int64
	if err := row.Scan(&rec.ID, &rec.Source, &rec.Format, &rec.Points, &rec.SkippedRecords, &rec.DroppedPoints, &recordedAt); err != nil {
		return CloudRecord{}, err
	}
	rec.RecordedAt = time.Unix(0, recordedAt).UTC()
	return rec, nil
}

func (s *Store) cloudStats(id string) (map[string]stats.Summary, error) {
	rows, err := s.db.Query(`SELECT attribute, min_value, max_value, mean_value, std_value
		FROM lidar_cloud_stats WHERE cloud_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]stats.Summary{}
	for rows.Next() {
		var name string
		var sum stats.Summary
		if err := rows.Scan(&name, &sum.Min, &sum.Max, &sum.Mean, &sum.Std); err != nil {
			return nil, err
		}
		out[name] = sum
	}
	return out, rows.Err()
}

// RecordSample stores a sample drawn from a recorded cloud.
func (s *Store) RecordSample(cloudID string, ratio float64, seed *int64, count int) (SampleRecord, error) {
	var exists int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM lidar_clouds WHERE cloud_id = ?`, cloudID).Scan(&exists)
	if err != nil {
		return SampleRecord{}, err
	}
	if exists == 0 {
		return SampleRecord{}, fmt.Errorf("cloud %s: %w", cloudID, ErrNotFound)
	}

	rec := SampleRecord{
		ID:         uuid.NewString(),
		CloudID:    cloudID,
		Ratio:      ratio,
		Points:     count,
		RecordedAt: s.now().UTC(),
	}
	var seedCol sql.NullInt64
	if seed != nil {
		v := *seed
		rec.Seed = &v
		seedCol = sql.NullInt64{Int64: v, Valid: true}
	}
	_, err = s.db.Exec(`INSERT INTO lidar_samples (sample_id, cloud_id, ratio, seed, point_count, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CloudID, rec.Ratio, seedCol, rec.Points, rec.RecordedAt.UnixNano())
	if err != nil {
		return SampleRecord{}, fmt.Errorf("failed to insert sample: %w", err)
	}
	return rec, nil
}

// ListSamples returns the samples of a cloud, oldest first.
func (s *Store) ListSamples(cloudID string) ([]SampleRecord, error) {
	rows, err := s.db.Query(`SELECT sample_id, cloud_id, ratio, seed, point_count, recorded_at
		FROM lidar_samples WHERE cloud_id = ? ORDER BY recorded_at, rowid`, cloudID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SampleRecord
	for rows.Next() {
		var rec SampleRecord
		var seed sql.NullInt64
		var recordedAt int64
		if err := rows.Scan(&rec.ID, &rec.CloudID, &rec.Ratio, &seed, &rec.Points, &recordedAt); err != nil {
			return nil, err
		}
		if seed.Valid {
			v := seed.Int64
			rec.Seed = &v
		}
		rec.RecordedAt = time.Unix(0, recordedAt).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
