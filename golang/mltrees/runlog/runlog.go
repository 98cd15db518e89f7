package runlog

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//Run is one training run of the command line tool.
type Run struct {
	ModelKind  string        `json:"model_kind"`
	ModelFile  string        `json:"model_file"`
	Samples    int           `json:"samples"`
	Trees      int           `json:"trees"`
	Nodes      int           `json:"nodes"`
	TrainError float64       `json:"train_error"`
	TestError  float64       `json:"test_error"`
	Duration   time.Duration `json:"duration"`
	TrainedAt  time.Time     `json:"trained_at"`
}

//Log is a sqlite table of training runs.
type Log struct {
	db *sql.DB
}

//Open opens or creates the run log at path.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	query := `
    CREATE TABLE IF NOT EXISTS training_runs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_kind VARCHAR(20) NOT NULL,
        model_file TEXT NOT NULL,
        samples INTEGER,
        trees INTEGER,
        nodes INTEGER,
        train_error REAL,
        test_error REAL,
        duration_ms INTEGER,
        trained_at DATETIME NOT NULL
    );`
	if _, err := db.Exec(query); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Log{db: db}, nil
}

//Record appends run. A zero TrainedAt is replaced by the current time.
func (l *Log) Record(ctx context.Context, run Run) error {
	if run.TrainedAt.IsZero() {
		run.TrainedAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx, `
        INSERT INTO training_runs (
            model_kind, model_file, samples, trees, nodes, train_error, test_error, duration_ms, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, run.ModelKind, run.ModelFile, run.Samples, run.Trees, run.Nodes,
		run.TrainError, run.TestError, run.Duration.Milliseconds(), run.TrainedAt)
	return err
}

//Recent returns up to limit runs, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := l.db.QueryContext(ctx, `
        SELECT model_kind, model_file, samples, trees, nodes, train_error, test_error, duration_ms, trained_at
        FROM training_runs
        ORDER BY trained_at DESC, id DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var run Run
		var durationMs int64
		if err := rows.Scan(&run.ModelKind, &run.ModelFile, &run.Samples, &run.Trees, &run.Nodes,
			&run.TrainError, &run.TestError, &durationMs, &run.TrainedAt); err != nil {
			return nil, err
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

//Close closes the database.
func (l *Log) Close() error {
	return l.db.Close()
}
