package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/kaowu/pkg/errors"
	"github.com/paiban/kaowu/pkg/model"
)

// RunRecord 求解记录
type RunRecord struct {
	ID          uuid.UUID              `json:"id"`
	Algorithm   string                 `json:"algorithm"`
	Status      string                 `json:"status"` // running/completed/stopped/failed
	Config      map[string]interface{} `json:"config,omitempty"`
	Iterations  int                    `json:"iterations"`
	InitialCost float64                `json:"initial_cost"`
	BestCost    float64                `json:"best_cost"`
	FinalCost   float64                `json:"final_cost"`
	Feasible    bool                   `json:"feasible"`
	StopReason  string                 `json:"stop_reason,omitempty"`
	ExecutionMs int64                  `json:"execution_ms"`
	Error       string                 `json:"error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	FinishedAt  *time.Time             `json:"finished_at,omitempty"`
}

// RunRepositoryInterface 求解记录仓储接口
type RunRepositoryInterface interface {
	Create(ctx context.Context, run *RunRecord) error
	Update(ctx context.Context, run *RunRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*RunRecord, error)
	List(ctx context.Context, filter ListFilter) ([]*RunRecord, int, error)
	Delete(ctx context.Context, id uuid.UUID) error

	SaveAssignments(ctx context.Context, runID uuid.UUID, courses []model.Course) error
	GetAssignments(ctx context.Context, runID uuid.UUID) ([]model.Course, error)
}

var runOrderColumns = map[string]bool{
	"created_at":  true,
	"finished_at": true,
	"final_cost":  true,
	"algorithm":   true,
}

const runColumns = `id, algorithm, status, config, iterations, initial_cost, best_cost, final_cost,
			feasible, stop_reason, execution_ms, error, created_at, finished_at`

// RunRepository 求解记录仓储实现
type RunRepository struct {
	db DB
}

// NewRunRepository 创建求解记录仓储
func NewRunRepository(db DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create 创建求解记录
func (r *RunRepository) Create(ctx context.Context, run *RunRecord) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	configJSON, err := marshalConfig(run.Config)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO exam_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = r.db.ExecContext(ctx, query,
		run.ID, run.Algorithm, run.Status, configJSON, run.Iterations,
		run.InitialCost, run.BestCost, run.FinalCost, run.Feasible, run.StopReason,
		run.ExecutionMs, run.Error, run.CreatedAt, nullTime(run.FinishedAt),
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "创建求解记录失败")
	}
	return nil
}

// Update 更新求解结果
func (r *RunRepository) Update(ctx context.Context, run *RunRecord) error {
	query := `
		UPDATE exam_runs SET
			status = $2, iterations = $3, initial_cost = $4, best_cost = $5, final_cost = $6,
			feasible = $7, stop_reason = $8, execution_ms = $9, error = $10, finished_at = $11
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		run.ID, run.Status, run.Iterations, run.InitialCost, run.BestCost, run.FinalCost,
		run.Feasible, run.StopReason, run.ExecutionMs, run.Error, nullTime(run.FinishedAt),
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "更新求解记录失败")
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return errors.NotFound("求解记录", run.ID.String())
	}
	return nil
}

// GetByID 根据ID获取求解记录
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM exam_runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("求解记录", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询求解记录失败")
	}
	return run, nil
}

// List 列出求解记录
func (r *RunRepository) List(ctx context.Context, filter ListFilter) ([]*RunRecord, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Algorithm != "" {
		args = append(args, filter.Algorithm)
		conditions = append(conditions, fmt.Sprintf("algorithm = $%d", len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM exam_runs " + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "统计求解记录失败")
	}

	query := fmt.Sprintf(`SELECT %s FROM exam_runs %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		runColumns, whereClause, filter.orderClause(runOrderColumns), len(args)+1, len(args)+2)
	args = append(args, filter.limit(), filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "查询求解记录失败")
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "扫描求解记录失败")
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "遍历求解记录失败")
	}
	return runs, total, nil
}

// Delete 删除求解记录，分配结果随外键级联删除
func (r *RunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM exam_runs WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "删除求解记录失败")
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return errors.NotFound("求解记录", id.String())
	}
	return nil
}

// SaveAssignments 覆盖写入求解结果中的科目分配
func (r *RunRepository) SaveAssignments(ctx context.Context, runID uuid.UUID, courses []model.Course) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM exam_run_assignments WHERE run_id = $1", runID); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "清除排考分配失败")
	}
	if len(courses) == 0 {
		return nil
	}

	const cols = 9
	values := make([]string, 0, len(courses))
	args := make([]interface{}, 0, len(courses)*cols)
	for i, c := range courses {
		base := i * cols
		placeholders := make([]string, cols)
		for k := range placeholders {
			placeholders[k] = fmt.Sprintf("$%d", base+k+1)
		}
		values = append(values, "("+strings.Join(placeholders, ", ")+")")
		args = append(args, runID, c.ID, c.Name, c.Location, c.StudentCount,
			c.AssignedDate, c.AssignedTime, c.AssignedRoom, c.AssignedProctorID)
	}

	query := `INSERT INTO exam_run_assignments (
			run_id, course_id, course_name, location, students,
			exam_date, exam_time, room_id, proctor_id
		) VALUES ` + strings.Join(values, ", ")
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "写入排考分配失败")
	}
	return nil
}

// GetAssignments 获取求解结果中的科目分配
func (r *RunRepository) GetAssignments(ctx context.Context, runID uuid.UUID) ([]model.Course, error) {
	query := `
		SELECT course_id, course_name, location, students, exam_date, exam_time, room_id, proctor_id
		FROM exam_run_assignments
		WHERE run_id = $1
		ORDER BY exam_date, exam_time, course_id
	`
	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询排考分配失败")
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Location, &c.StudentCount,
			&c.AssignedDate, &c.AssignedTime, &c.AssignedRoom, &c.AssignedProctorID,
		); err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "扫描排考分配失败")
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "遍历排考分配失败")
	}
	return courses, nil
}

// scanRun 扫描单条求解记录
func scanRun(row Scanner) (*RunRecord, error) {
	run := &RunRecord{}
	var configJSON []byte
	var finished sql.NullTime

	err := row.Scan(
		&run.ID, &run.Algorithm, &run.Status, &configJSON, &run.Iterations,
		&run.InitialCost, &run.BestCost, &run.FinalCost, &run.Feasible, &run.StopReason,
		&run.ExecutionMs, &run.Error, &run.CreatedAt, &finished,
	)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &run.Config); err != nil {
			return nil, fmt.Errorf("解析求解配置失败: %w", err)
		}
	}
	return run, nil
}

func marshalConfig(config map[string]interface{}) ([]byte, error) {
	if config == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(config)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "求解配置无法序列化")
	}
	return data, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
