/*
Package sqlstore keeps tracking metadata in a SQLite database laid out like the MLflow SQL store
*/
package sqlstore

import (
	"context"
	"database/sql"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go-ml.dev/pkg/dvcflow/tracking"
	"go-ml.dev/pkg/zorros"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultArtifactRoot is where experiments put artifacts when no root is configured
const DefaultArtifactRoot = "./mlruns"

// DatabaseFile is the database name inside a file:// tracking directory
const DatabaseFile = "mlflow.db"

func init() {
	tracking.RegisterStore("sqlite", func(uri string, opts tracking.Options) (tracking.Store, error) {
		return New(DatabasePath(uri), opts.ArtifactRoot)
	})
	tracking.RegisterStore("file", func(uri string, opts tracking.Options) (tracking.Store, error) {
		dir := tracking.LocalPath(uri)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, zorros.Trace(err)
		}
		return New(filepath.Join(dir, DatabaseFile), fnzs(opts.ArtifactRoot, dir))
	})
}

func fnzs(a ...string) string {
	for _, s := range a {
		if s != "" {
			return s
		}
	}
	return ""
}

/*
DatabasePath extracts the database file from sqlite:///relative.db or sqlite:////absolute.db
*/
func DatabasePath(uri string) string {
	if strings.HasPrefix(uri, "sqlite:///") {
		return strings.TrimPrefix(uri, "sqlite:///")
	}
	return strings.TrimPrefix(uri, "sqlite:")
}

const schema = `
CREATE TABLE IF NOT EXISTS experiments (
	experiment_id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	artifact_location TEXT,
	lifecycle_stage TEXT NOT NULL DEFAULT 'active',
	creation_time INTEGER
);
CREATE TABLE IF NOT EXISTS runs (
	run_uuid TEXT PRIMARY KEY,
	name TEXT,
	experiment_id INTEGER NOT NULL REFERENCES experiments(experiment_id),
	status TEXT NOT NULL,
	start_time INTEGER,
	end_time INTEGER,
	artifact_uri TEXT,
	lifecycle_stage TEXT NOT NULL DEFAULT 'active'
);
CREATE TABLE IF NOT EXISTS params (
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	run_uuid TEXT NOT NULL REFERENCES runs(run_uuid),
	PRIMARY KEY (key, run_uuid)
);
CREATE TABLE IF NOT EXISTS metrics (
	key TEXT NOT NULL,
	value REAL NOT NULL,
	timestamp INTEGER NOT NULL,
	step INTEGER NOT NULL DEFAULT 0,
	is_nan INTEGER NOT NULL DEFAULT 0,
	run_uuid TEXT NOT NULL REFERENCES runs(run_uuid),
	PRIMARY KEY (key, timestamp, step, run_uuid, value, is_nan)
);
CREATE TABLE IF NOT EXISTS tags (
	key TEXT NOT NULL,
	value TEXT,
	run_uuid TEXT NOT NULL REFERENCES runs(run_uuid),
	PRIMARY KEY (key, run_uuid)
);
`

/*
Store is the SQLite tracking store
*/
type Store struct {
	db           *sql.DB
	artifactRoot string
}

/*
New opens or creates the database file, artifactRoot is the parent of new experiments artifact locations
*/
func New(path, artifactRoot string) (*Store, error) {
	if path == "" {
		return nil, zorros.Errorf("empty database path")
	}
	root := fnzs(artifactRoot, DefaultArtifactRoot)
	if tracking.Scheme(root) == "file" {
		abs, err := filepath.Abs(tracking.LocalPath(root))
		if err != nil {
			return nil, zorros.Trace(err)
		}
		root = abs
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=1")
	if err != nil {
		return nil, zorros.Trace(err)
	}
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, zorros.Wrapf(err, "failed to initialize tracking database %v: %v", path, err.Error())
	}
	return &Store{db: db, artifactRoot: root}, nil
}

func ms(t time.Time) int64 { return t.UnixNano() / int64(time.Millisecond) }

func fromMs(v int64) time.Time { return time.Unix(0, v*int64(time.Millisecond)) }

func joinURI(base string, elem ...string) string {
	return strings.TrimRight(base, "/") + "/" + strings.Join(elem, "/")
}

func (s *Store) GetExperimentByName(ctx context.Context, name string) (*tracking.Experiment, error) {
	var (
		id       int64
		location sql.NullString
		stage    string
		created  sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT experiment_id, artifact_location, lifecycle_stage, creation_time FROM experiments WHERE name = ?`,
		name).Scan(&id, &location, &stage, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, zorros.Trace(err)
	}
	return &tracking.Experiment{
		ID:               strconv.FormatInt(id, 10),
		Name:             name,
		ArtifactLocation: location.String,
		LifecycleStage:   stage,
		CreationTime:     fromMs(created.Int64),
	}, nil
}

func (s *Store) CreateExperiment(ctx context.Context, name, artifactLocation string) (string, error) {
	if name == "" {
		return "", zorros.Errorf("empty experiment name")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", zorros.Trace(err)
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO experiments (name, lifecycle_stage, creation_time) VALUES (?, 'active', ?)`,
		name, ms(time.Now()))
	if err != nil {
		return "", zorros.Wrapf(err, "failed to create experiment `%v`: %v", name, err.Error())
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", zorros.Trace(err)
	}
	sid := strconv.FormatInt(id, 10)
	if artifactLocation == "" {
		artifactLocation = joinURI(s.artifactRoot, sid)
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE experiments SET artifact_location = ? WHERE experiment_id = ?`, artifactLocation, id); err != nil {
		return "", zorros.Trace(err)
	}
	if err = tx.Commit(); err != nil {
		return "", zorros.Trace(err)
	}
	return sid, nil
}

func (s *Store) CreateRun(ctx context.Context, experimentID, runName string, start time.Time, tags map[string]string) (*tracking.RunInfo, error) {
	var location sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT artifact_location FROM experiments WHERE experiment_id = ?`, experimentID).Scan(&location)
	if err == sql.ErrNoRows {
		return nil, zorros.Errorf("no experiment with id %v", experimentID)
	}
	if err != nil {
		return nil, zorros.Trace(err)
	}
	id := strings.Replace(uuid.New().String(), "-", "", -1)
	if runName == "" {
		runName = "run-" + id[:8]
	}
	info := &tracking.RunInfo{
		RunID:        id,
		ExperimentID: experimentID,
		RunName:      runName,
		Status:       tracking.RunStatusRunning,
		StartTime:    start,
		ArtifactURI:  joinURI(location.String, id, "artifacts"),
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, zorros.Trace(err)
	}
	defer tx.Rollback()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_uuid, name, experiment_id, status, start_time, artifact_uri, lifecycle_stage)
		VALUES (?, ?, ?, ?, ?, ?, 'active')`,
		id, runName, experimentID, string(info.Status), ms(start), info.ArtifactURI); err != nil {
		return nil, zorros.Trace(err)
	}
	for k, v := range tags {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO tags (key, value, run_uuid) VALUES (?, ?, ?)`, k, v, id); err != nil {
			return nil, zorros.Trace(err)
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, zorros.Trace(err)
	}
	return info, nil
}

func (s *Store) status(ctx context.Context, runID string) (tracking.RunStatus, error) {
	var st string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM runs WHERE run_uuid = ?`, runID).Scan(&st)
	if err == sql.ErrNoRows {
		return "", zorros.Errorf("no run with id %v", runID)
	}
	if err != nil {
		return "", zorros.Trace(err)
	}
	return tracking.RunStatus(st), nil
}

func (s *Store) requireActive(ctx context.Context, runID string) error {
	st, err := s.status(ctx, runID)
	if err != nil {
		return err
	}
	if st.Terminal() {
		return zorros.Errorf("run %v is already %v", runID, st)
	}
	return nil
}

func (s *Store) UpdateRun(ctx context.Context, runID string, status tracking.RunStatus, end time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, end_time = ? WHERE run_uuid = ?`, string(status), ms(end), runID)
	if err != nil {
		return zorros.Trace(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return zorros.Trace(err)
	} else if n == 0 {
		return zorros.Errorf("no run with id %v", runID)
	}
	return nil
}

func (s *Store) LogParam(ctx context.Context, runID, key, value string) error {
	if err := s.requireActive(ctx, runID); err != nil {
		return err
	}
	var old string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM params WHERE run_uuid = ? AND key = ?`, runID, key).Scan(&old)
	switch {
	case err == sql.ErrNoRows:
		if _, err = s.db.ExecContext(ctx, `INSERT INTO params (key, value, run_uuid) VALUES (?, ?, ?)`, key, value, runID); err != nil {
			return zorros.Trace(err)
		}
		return nil
	case err != nil:
		return zorros.Trace(err)
	case old != value:
		return zorros.Errorf("param `%v` of run %v is already %q, can't change it to %q", key, runID, old, value)
	}
	return nil
}

func (s *Store) LogMetric(ctx context.Context, runID string, m tracking.Metric) error {
	if err := s.requireActive(ctx, runID); err != nil {
		return err
	}
	v, isNaN := m.Value, 0
	switch {
	case math.IsNaN(v):
		v, isNaN = 0, 1
	case math.IsInf(v, 1):
		v = math.MaxFloat64
	case math.IsInf(v, -1):
		v = -math.MaxFloat64
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO metrics (key, value, timestamp, step, is_nan, run_uuid) VALUES (?, ?, ?, ?, ?, ?)`,
		m.Key, v, ms(m.Timestamp), m.Step, isNaN, runID)
	if err != nil {
		return zorros.Trace(err)
	}
	return nil
}

func (s *Store) SetTag(ctx context.Context, runID, key, value string) error {
	if _, err := s.status(ctx, runID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO tags (key, value, run_uuid) VALUES (?, ?, ?)`, key, value, runID)
	if err != nil {
		return zorros.Trace(err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (*tracking.RunData, error) {
	var (
		name, status string
		expID        int64
		start        sql.NullInt64
		end          sql.NullInt64
		uri          sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT name, experiment_id, status, start_time, end_time, artifact_uri FROM runs WHERE run_uuid = ?`,
		runID).Scan(&name, &expID, &status, &start, &end, &uri)
	if err == sql.ErrNoRows {
		return nil, zorros.Errorf("no run with id %v", runID)
	}
	if err != nil {
		return nil, zorros.Trace(err)
	}
	d := &tracking.RunData{
		Info: tracking.RunInfo{
			RunID:        runID,
			ExperimentID: strconv.FormatInt(expID, 10),
			RunName:      name,
			Status:       tracking.RunStatus(status),
			StartTime:    fromMs(start.Int64),
			ArtifactURI:  uri.String,
		},
		Params:  map[string]string{},
		Metrics: map[string]tracking.Metric{},
		Tags:    map[string]string{},
	}
	if end.Valid {
		t := fromMs(end.Int64)
		d.Info.EndTime = &t
	}
	if err = s.pairs(ctx, `SELECT key, value FROM params WHERE run_uuid = ?`, runID, d.Params); err != nil {
		return nil, err
	}
	if err = s.pairs(ctx, `SELECT key, value FROM tags WHERE run_uuid = ?`, runID, d.Tags); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, timestamp, step, is_nan FROM metrics WHERE run_uuid = ? ORDER BY key, step, timestamp`, runID)
	if err != nil {
		return nil, zorros.Trace(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			m     tracking.Metric
			ts    int64
			isNaN int
		)
		if err = rows.Scan(&m.Key, &m.Value, &ts, &m.Step, &isNaN); err != nil {
			return nil, zorros.Trace(err)
		}
		m.Timestamp = fromMs(ts)
		if isNaN != 0 {
			m.Value = math.NaN()
		}
		// ordered by step and timestamp, the last one wins
		d.Metrics[m.Key] = m
	}
	if err = rows.Err(); err != nil {
		return nil, zorros.Trace(err)
	}
	return d, nil
}

func (s *Store) pairs(ctx context.Context, query, runID string, into map[string]string) error {
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return zorros.Trace(err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var v sql.NullString
		if err = rows.Scan(&k, &v); err != nil {
			return zorros.Trace(err)
		}
		into[k] = v.String
	}
	if err = rows.Err(); err != nil {
		return zorros.Trace(err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
