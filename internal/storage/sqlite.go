package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"runbook/internal/models"

	_ "modernc.org/sqlite"
)

// Storage is the append-only execution history log. Execution rows are
// inserted once and never updated or deleted.
type Storage struct {
	db *sql.DB

	// mu serializes appends so insertion order matches call order.
	mu sync.Mutex
}

func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		execution_id TEXT NOT NULL,
		workflow_name TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		duration REAL,
		exit_code INTEGER,
		stdout TEXT,
		stderr TEXT,
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_executions_workflow ON executions(workflow_name);
	CREATE INDEX IF NOT EXISTS idx_executions_status ON executions(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveExecution appends one result and returns its row id.
func (s *Storage) SaveExecution(res *models.ExecutionResult) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(
		`INSERT INTO executions (execution_id, workflow_name, status, started_at, finished_at, duration, exit_code, stdout, stderr, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ExecutionID, res.WorkflowName, res.Status, res.StartedAt,
		res.FinishedAt, res.Duration, res.ExitCode, res.Stdout, res.Stderr, res.ErrorMessage,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// QueryOptions filters the history log. Statuses takes precedence over
// Status when both are set.
type QueryOptions struct {
	WorkflowName string
	Status       models.ExecStatus
	Statuses     []models.ExecStatus
	Limit        int
}

// QueryExecutions returns matching results, most recent first. Reads
// may run concurrently with appends; a reader may miss a write that
// commits mid-query.
func (s *Storage) QueryExecutions(opts QueryOptions) ([]*models.ExecutionResult, error) {
	query := `SELECT id, execution_id, workflow_name, status, started_at, finished_at, duration, exit_code, stdout, stderr, error_message
		 FROM executions WHERE 1=1`
	var params []any

	if opts.WorkflowName != "" {
		query += " AND workflow_name = ?"
		params = append(params, opts.WorkflowName)
	}

	statuses := opts.Statuses
	if len(statuses) == 0 && opts.Status != "" {
		statuses = []models.ExecStatus{opts.Status}
	}
	if len(statuses) > 0 {
		query += " AND status IN (?" + strings.Repeat(",?", len(statuses)-1) + ")"
		for _, st := range statuses {
			params = append(params, st)
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	params = append(params, limit)

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*models.ExecutionResult
	for rows.Next() {
		res, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	return results, rows.Err()
}

func scanExecution(rows *sql.Rows) (*models.ExecutionResult, error) {
	var res models.ExecutionResult
	var finishedAt sql.NullTime
	var duration sql.NullFloat64
	var exitCode sql.NullInt64
	var stdout, stderr, errorMessage sql.NullString

	err := rows.Scan(
		&res.ID, &res.ExecutionID, &res.WorkflowName, &res.Status,
		&res.StartedAt, &finishedAt, &duration, &exitCode,
		&stdout, &stderr, &errorMessage,
	)
	if err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		res.FinishedAt = &finishedAt.Time
	}
	if duration.Valid {
		res.Duration = duration.Float64
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		res.ExitCode = &code
	}
	res.Stdout = stdout.String
	res.Stderr = stderr.String
	res.ErrorMessage = errorMessage.String

	return &res, nil
}

// WorkflowStats aggregates the history of one workflow.
type WorkflowStats struct {
	Total       int     `json:"total_executions"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"` // percent
	AvgDuration float64 `json:"avg_duration"` // seconds, successes only
}

func (s *Storage) Stats(workflowName string) (*WorkflowStats, error) {
	stats := &WorkflowStats{}

	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM executions WHERE workflow_name = ?`,
		workflowName,
	).Scan(&stats.Total)
	if err != nil {
		return nil, fmt.Errorf("failed to count executions: %w", err)
	}

	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM executions WHERE workflow_name = ? AND status = ?`,
		workflowName, models.ExecStatusSuccess,
	).Scan(&stats.Successful)
	if err != nil {
		return nil, fmt.Errorf("failed to count successes: %w", err)
	}

	var avg sql.NullFloat64
	err = s.db.QueryRow(
		`SELECT AVG(duration) FROM executions WHERE workflow_name = ? AND status = ?`,
		workflowName, models.ExecStatusSuccess,
	).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("failed to average durations: %w", err)
	}

	stats.Failed = stats.Total - stats.Successful
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Successful) / float64(stats.Total) * 100
	}
	if avg.Valid {
		stats.AvgDuration = avg.Float64
	}

	return stats, nil
}
