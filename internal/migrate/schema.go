package migrate

import (
	"database/sql"

	"tile-splitter/internal/logger"
)

// EnsureSchema：首次运行时创建切分运行记录与瓦片表
// 约束：只用 IF NOT EXISTS，重复执行无副作用
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _split_runs (
            id UUID PRIMARY KEY,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            fingerprint BIGINT NOT NULL,
            resolution INT NOT NULL,
            max_nodes BIGINT NOT NULL,
            overlap INT NOT NULL,
            min_lat INT NOT NULL,
            min_lon INT NOT NULL,
            max_lat INT NOT NULL,
            max_lon INT NOT NULL,
            total_points BIGINT NOT NULL,
            tiles INT NOT NULL,
            outcome TEXT NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_split_runs_fp ON _split_runs(fingerprint, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS _split_areas (
            run_id UUID NOT NULL REFERENCES _split_runs(id) ON DELETE CASCADE,
            seq INT NOT NULL,
            mapid INT NOT NULL,
            min_lat INT NOT NULL,
            min_lon INT NOT NULL,
            max_lat INT NOT NULL,
            max_lon INT NOT NULL,
            size BIGINT NOT NULL,
            PRIMARY KEY (run_id, seq)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_split_areas_mapid ON _split_areas(mapid)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
