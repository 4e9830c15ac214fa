// 包 store：切分运行记录与瓦片列表的 PostgreSQL 持久化
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"tile-splitter/internal/areas"
	"tile-splitter/internal/geo"
	"tile-splitter/internal/logger"
)

// Store：持有连接池
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// Run：一次切分运行的参数与结果摘要
type Run struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	Fingerprint uint64
	Resolution  int
	MaxNodes    int64
	Overlap     int
	Bounds      geo.Area
	TotalPoints int64
	Tiles       int
	Outcome     string
}

// SaveRun：在一个事务内写入运行记录与全部瓦片
func (s *Store) SaveRun(ctx context.Context, run *Run, list *areas.List) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	b := run.Bounds
	_, err = tx.ExecContext(ctx, `INSERT INTO _split_runs(id, fingerprint, resolution, max_nodes, overlap,
        min_lat, min_lon, max_lat, max_lon, total_points, tiles, outcome)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		run.ID.String(), int64(run.Fingerprint), run.Resolution, run.MaxNodes, run.Overlap,
		b.MinLat, b.MinLon, b.MaxLat, b.MaxLon, run.TotalPoints, list.Len(), run.Outcome)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO _split_areas(run_id, seq, mapid, min_lat, min_lon, max_lat, max_lon, size)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, a := range list.Areas() {
		ab := a.Bounds
		if _, err := stmt.ExecContext(ctx, run.ID.String(), i, a.MapID, ab.MinLat, ab.MinLon, ab.MaxLat, ab.MaxLon, a.Size); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logger.L().Info("db_run_saved", "run", run.ID.String(), "tiles", list.Len())
	return nil
}

// LatestRun：按输入指纹查询最近一次运行，无记录时返回 nil, nil
func (s *Store) LatestRun(ctx context.Context, fingerprint uint64) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, created_at, fingerprint, resolution, max_nodes, overlap,
        min_lat, min_lon, max_lat, max_lon, total_points, tiles, outcome
        FROM _split_runs WHERE fingerprint=$1 ORDER BY created_at DESC LIMIT 1`, int64(fingerprint))
	var (
		r  Run
		id string
		fp int64
	)
	err := row.Scan(&id, &r.CreatedAt, &fp, &r.Resolution, &r.MaxNodes, &r.Overlap,
		&r.Bounds.MinLat, &r.Bounds.MinLon, &r.Bounds.MaxLat, &r.Bounds.MaxLon,
		&r.TotalPoints, &r.Tiles, &r.Outcome)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	r.Fingerprint = uint64(fp)
	return &r, nil
}

// LoadAreas：按写入顺序读取一次运行的瓦片列表
func (s *Store) LoadAreas(ctx context.Context, runID uuid.UUID) (*areas.List, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT mapid, min_lat, min_lon, max_lat, max_lon, size
        FROM _split_areas WHERE run_id=$1 ORDER BY seq`, runID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	l := areas.NewList()
	for rows.Next() {
		var (
			b    geo.Area
			id   int
			size int64
		)
		if err := rows.Scan(&id, &b.MinLat, &b.MinLon, &b.MaxLat, &b.MaxLon, &size); err != nil {
			return nil, err
		}
		a := areas.NewSubArea(b, size)
		a.MapID = id
		l.Add(a)
	}
	return l, rows.Err()
}
