package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/paiban/kaowu/pkg/logger"
)

// migrations 按顺序执行的建表语句，均可重复执行
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS exam_runs (
		id             UUID PRIMARY KEY,
		algorithm      VARCHAR(16)  NOT NULL,
		status         VARCHAR(16)  NOT NULL,
		config         JSONB        NOT NULL DEFAULT '{}',
		iterations     INTEGER      NOT NULL DEFAULT 0,
		initial_cost   DOUBLE PRECISION NOT NULL DEFAULT 0,
		best_cost      DOUBLE PRECISION NOT NULL DEFAULT 0,
		final_cost     DOUBLE PRECISION NOT NULL DEFAULT 0,
		feasible       BOOLEAN      NOT NULL DEFAULT FALSE,
		stop_reason    VARCHAR(32)  NOT NULL DEFAULT '',
		execution_ms   BIGINT       NOT NULL DEFAULT 0,
		error          TEXT         NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		finished_at    TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_exam_runs_status ON exam_runs (status)`,
	`CREATE INDEX IF NOT EXISTS idx_exam_runs_created_at ON exam_runs (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS exam_run_assignments (
		run_id      UUID         NOT NULL REFERENCES exam_runs (id) ON DELETE CASCADE,
		course_id   VARCHAR(128) NOT NULL,
		course_name VARCHAR(255) NOT NULL DEFAULT '',
		location    VARCHAR(64)  NOT NULL DEFAULT '',
		students    INTEGER      NOT NULL DEFAULT 0,
		exam_date   VARCHAR(10)  NOT NULL DEFAULT '',
		exam_time   VARCHAR(5)   NOT NULL DEFAULT '',
		room_id     VARCHAR(64)  NOT NULL DEFAULT '',
		proctor_id  VARCHAR(64)  NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, course_id)
	)`,
}

// Migrate 在一个事务中创建求解记录相关的表
func (db *DB) Migrate(ctx context.Context) error {
	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		for i, stmt := range migrations {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("执行迁移 #%d 失败: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info().Int("statements", len(migrations)).Msg("数据库迁移完成")
	return nil
}
