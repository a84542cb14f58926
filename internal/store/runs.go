package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/eventpca/internal/monitoring"
	"github.com/banshee-data/eventpca/internal/pca"
	"github.com/banshee-data/eventpca/internal/series"
)

var (
	// ErrRunNotFound is returned for an unknown run ID.
	ErrRunNotFound = errors.New("store: run not found")
	// ErrNotFinalized is returned when saving a series that has not been
	// rebased yet.
	ErrNotFinalized = errors.New("store: series not finalized")
)

// RunInfo describes a stored run.
type RunInfo struct {
	ID        string
	Label     string
	CreatedAt time.Time
	Batches   int
	Samples   int
}

// SaveRun stores a finalized series and returns the new run ID.
func (s *Store) SaveRun(ctx context.Context, sr *series.Series, label string) (string, error) {
	if !sr.Finalized() {
		return "", ErrNotFinalized
	}
	if err := sr.Validate(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, label, created_us, batch_count, sample_count, time_origin, raw_origin)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, label, s.clock.Now().UnixMicro(), sr.Len(), sr.SampleCount(), sr.TimeOrigin, sr.RawOrigin,
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	batchStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO batches (run_id, batch_index, time_us, median_timestamp, centroid_x, centroid_y,
			sample_count, cov_xx, cov_yy, cov_xy, lambda1, lambda2, v1_x, v1_y, v2_x, v2_y, degenerate, clamped)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare batches: %w", err)
	}
	defer batchStmt.Close()

	blockStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sample_blocks (run_id, batch_index, sample_count, payload) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare sample blocks: %w", err)
	}
	defer blockStmt.Close()

	offset := 0
	for i, sum := range sr.Summaries {
		if _, err := batchStmt.ExecContext(ctx,
			id, i, sr.Times[i], sum.MedianTimestamp, sum.CentroidX, sum.CentroidY,
			sum.Count, sum.Covariance.XX, sum.Covariance.YY, sum.Covariance.XY,
			sum.Values[0], sum.Values[1],
			sum.Vectors[0].X, sum.Vectors[0].Y, sum.Vectors[1].X, sum.Vectors[1].Y,
			sum.Degenerate, sum.Clamped,
		); err != nil {
			return "", fmt.Errorf("insert batch %d: %w", i, err)
		}

		end := offset + sum.Count
		payload := encodeBlock(sr.AllTimestamps[offset:end], sr.AllX[offset:end], sr.AllY[offset:end])
		if _, err := blockStmt.ExecContext(ctx, id, i, sum.Count, payload); err != nil {
			return "", fmt.Errorf("insert sample block %d: %w", i, err)
		}
		offset = end
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	monitoring.Logf("store: saved run %s (%d batches, %d samples)", id, sr.Len(), sr.SampleCount())
	return id, nil
}

// LoadRun rebuilds a stored series. The result is finalized.
func (s *Store) LoadRun(ctx context.Context, id string) (*series.Series, error) {
	sr := series.New()
	var timeOrigin nullFloat
	err := s.db.QueryRowContext(ctx,
		`SELECT time_origin, raw_origin FROM runs WHERE run_id = ?`, id,
	).Scan(&timeOrigin, &sr.RawOrigin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	sr.TimeOrigin = float64(timeOrigin)

	if err := s.loadBatches(ctx, id, sr); err != nil {
		return nil, err
	}
	if err := s.loadSamples(ctx, id, sr); err != nil {
		return nil, err
	}
	if err := sr.Validate(); err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	sr.Seal()
	return sr, nil
}

func (s *Store) loadBatches(ctx context.Context, id string, sr *series.Series) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT time_us, median_timestamp, centroid_x, centroid_y, sample_count,
			cov_xx, cov_yy, cov_xy, lambda1, lambda2, v1_x, v1_y, v2_x, v2_y, degenerate, clamped
		 FROM batches WHERE run_id = ? ORDER BY batch_index`, id)
	if err != nil {
		return fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t, med, cx, cy, xx, yy, xy, l1, l2, v1x, v1y, v2x, v2y nullFloat
			sum                                                     pca.BatchSummary
		)
		if err := rows.Scan(&t, &med, &cx, &cy, &sum.Count, &xx, &yy, &xy, &l1, &l2,
			&v1x, &v1y, &v2x, &v2y, &sum.Degenerate, &sum.Clamped); err != nil {
			return fmt.Errorf("scan batch: %w", err)
		}
		sum.MedianTimestamp = float64(med)
		sum.CentroidX, sum.CentroidY = float64(cx), float64(cy)
		sum.Covariance = pca.CovarianceMatrix{XX: float64(xx), YY: float64(yy), XY: float64(xy)}
		sum.Values = [2]float64{float64(l1), float64(l2)}
		sum.Vectors = [2]pca.Vec2{{X: float64(v1x), Y: float64(v1y)}, {X: float64(v2x), Y: float64(v2y)}}

		sr.Times = append(sr.Times, float64(t))
		sr.XCenters = append(sr.XCenters, sum.CentroidX)
		sr.YCenters = append(sr.YCenters, sum.CentroidY)
		sr.Principal1 = append(sr.Principal1, sum.Vectors[0])
		sr.Principal2 = append(sr.Principal2, sum.Vectors[1])
		sr.Summaries = append(sr.Summaries, sum)
	}
	return rows.Err()
}

func (s *Store) loadSamples(ctx context.Context, id string, sr *series.Series) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_index, sample_count, payload FROM sample_blocks WHERE run_id = ? ORDER BY batch_index`, id)
	if err != nil {
		return fmt.Errorf("query sample blocks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			idx, count int
			payload    []byte
		)
		if err := rows.Scan(&idx, &count, &payload); err != nil {
			return fmt.Errorf("scan sample block: %w", err)
		}
		ts, xs, ys, err := decodeBlock(payload)
		if err != nil {
			return fmt.Errorf("batch %d: %w", idx, err)
		}
		if len(ts) != count {
			return fmt.Errorf("batch %d: %w: %d samples, header says %d", idx, errCorruptBlock, len(ts), count)
		}
		sr.AllTimestamps = append(sr.AllTimestamps, ts...)
		sr.AllX = append(sr.AllX, xs...)
		sr.AllY = append(sr.AllY, ys...)
	}
	return rows.Err()
}

// ListRuns returns stored runs, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, label, created_us, batch_count, sample_count FROM runs ORDER BY created_us, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var (
			r       RunInfo
			created int64
		)
		if err := rows.Scan(&r.ID, &r.Label, &created, &r.Batches, &r.Samples); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.CreatedAt = time.UnixMicro(created).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its batches.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// nullFloat scans SQL NULL as NaN. SQLite stores NaN as NULL.
type nullFloat float64

func (f *nullFloat) Scan(v interface{}) error {
	var n sql.NullFloat64
	if err := n.Scan(v); err != nil {
		return err
	}
	if !n.Valid {
		*f = nullFloat(math.NaN())
		return nil
	}
	*f = nullFloat(n.Float64)
	return nil
}
