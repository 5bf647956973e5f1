package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agenciai/agx/internal/log"
	"github.com/agenciai/agx/internal/model"
	"github.com/agenciai/agx/internal/storage"
	"github.com/agenciai/agx/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.TaskRepository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

var _ storage.TaskRepository = &Repository{}

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(migrations.MigratorConfig{DB: db, Logger: cfg.Logger})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	version, err := migrator.Up(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s (schema v%d)", cfg.DBPath, version)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

const taskColumns = `
	id, file_name, state, stage,
	submitted_at, finished_at, failure_reason,
	total_processed, valid_count, flagged_count, accuracy_rate, generated_at
`

// CreateTask stores a new task.
func (r *Repository) CreateTask(ctx context.Context, t model.TaskRecord) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w: %w", model.ErrNotValid, err)
	}

	query := `INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, taskArgs(t)...)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: tasks.") {
			return fmt.Errorf("task %s: %w", t.ID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert task: %w", err)
	}

	r.logger.Debugf("Created task in repository: %s", t.ID)
	return nil
}

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(ctx context.Context, id model.TaskID) (*model.TaskRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, string(id))

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query task: %w", err)
	}

	return &t, nil
}

// ListTasks returns the tasks, newest first.
func (r *Repository) ListTasks(ctx context.Context, limit int) ([]model.TaskRecord, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY submitted_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.TaskRecord
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return tasks, nil
}

// UpdateTask updates an existing task.
func (r *Repository) UpdateTask(ctx context.Context, t model.TaskRecord) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w: %w", model.ErrNotValid, err)
	}

	query := `
		UPDATE tasks
		SET
			file_name = ?,
			state = ?,
			stage = ?,
			submitted_at = ?,
			finished_at = ?,
			failure_reason = ?,
			total_processed = ?,
			valid_count = ?,
			flagged_count = ?,
			accuracy_rate = ?,
			generated_at = ?
		WHERE id = ?
	`

	args := append(taskArgs(t)[1:], string(t.ID))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", t.ID, model.ErrNotFound)
	}

	r.logger.Debugf("Updated task in repository: %s", t.ID)
	return nil
}

// taskArgs returns the column values of a task in taskColumns order.
func taskArgs(t model.TaskRecord) []any {
	var finishedAt *int64
	if t.FinishedAt != nil {
		u := t.FinishedAt.UnixMilli()
		finishedAt = &u
	}

	var total, valid, flagged *int
	var accuracy *float64
	var generatedAt *string
	if rp := t.Report; rp != nil {
		total, valid, flagged = &rp.TotalProcessed, &rp.ValidCount, &rp.FlaggedCount
		accuracy = &rp.AccuracyRate
		generatedAt = &rp.GeneratedAt
	}

	return []any{
		string(t.ID),
		t.FileName,
		string(t.State),
		int(t.Stage),
		t.SubmittedAt.UnixMilli(),
		finishedAt,
		t.FailureReason,
		total,
		valid,
		flagged,
		accuracy,
		generatedAt,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (model.TaskRecord, error) {
	var t model.TaskRecord
	var id, state string
	var stage int
	var submittedAt int64
	var finishedAt, total, valid, flagged sql.NullInt64
	var accuracy sql.NullFloat64
	var generatedAt sql.NullString

	err := s.Scan(
		&id,
		&t.FileName,
		&state,
		&stage,
		&submittedAt,
		&finishedAt,
		&t.FailureReason,
		&total,
		&valid,
		&flagged,
		&accuracy,
		&generatedAt,
	)
	if err != nil {
		return model.TaskRecord{}, err
	}

	t.ID = model.TaskID(id)
	t.State = model.TaskState(state)
	t.Stage = model.Stage(stage)
	t.SubmittedAt = timeFromUnixMilli(submittedAt)
	if finishedAt.Valid {
		f := timeFromUnixMilli(finishedAt.Int64)
		t.FinishedAt = &f
	}

	if accuracy.Valid {
		t.Report = &model.Report{
			TotalProcessed: int(total.Int64),
			ValidCount:     int(valid.Int64),
			FlaggedCount:   int(flagged.Int64),
			AccuracyRate:   accuracy.Float64,
			GeneratedAt:    generatedAt.String,
		}
	}

	return t, nil
}

func timeFromUnixMilli(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
