package tracking

import (
	"context"
	"encoding/json"
	"go-ml.dev/pkg/dvcflow/fu"
	"go-ml.dev/pkg/dvcflow/model"
	"go-ml.dev/pkg/zorros"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
)

/*
Run is an open experiment run, all logging of the run goes through it
*/
type Run struct {
	tracker *Tracker
	info    RunInfo
	repo    ArtifactRepository
	params  map[string]string
	closed  bool
}

// ID returns the run identifier
func (r *Run) ID() string { return r.info.RunID }

// Info returns the run metadata
func (r *Run) Info() RunInfo { return r.info }

// Closed reports whether the run was ended
func (r *Run) Closed() bool { return r.closed }

func (r *Run) check(op string) error {
	if r.closed {
		return &LoggingError{Op: op, Err: zorros.Errorf("run %v is already %v", r.info.RunID, r.info.Status)}
	}
	return nil
}

/*
LogParam records a parameter. Logging the same value again is a no-op,
logging another value for a logged key fails.
*/
func (r *Run) LogParam(ctx context.Context, key, value string) error {
	if err := r.check("log param"); err != nil {
		return err
	}
	if old, ok := r.params[key]; ok {
		if old == value {
			return nil
		}
		return &LoggingError{Op: "log param", Err: zorros.Errorf("param `%v` is already logged as %q, can't change it to %q", key, old, value)}
	}
	if err := r.tracker.store.LogParam(ctx, r.info.RunID, key, value); err != nil {
		return fail("log param", err)
	}
	r.params[key] = value
	return nil
}

/*
LogParams records parameters in order
*/
func (r *Run) LogParams(ctx context.Context, params ...Param) error {
	for _, p := range params {
		if err := r.LogParam(ctx, p.Key, p.Value); err != nil {
			return err
		}
	}
	return nil
}

/*
LogMetric records a single point of metric series at step 0
*/
func (r *Run) LogMetric(ctx context.Context, key string, value float64) error {
	return r.LogMetricStep(ctx, key, value, 0)
}

/*
LogMetricStep records a point of metric series
*/
func (r *Run) LogMetricStep(ctx context.Context, key string, value float64, step int64) error {
	if err := r.check("log metric"); err != nil {
		return err
	}
	m := Metric{Key: key, Value: value, Timestamp: r.tracker.now(), Step: step}
	if err := r.tracker.store.LogMetric(ctx, r.info.RunID, m); err != nil {
		return fail("log metric", err)
	}
	return nil
}

/*
LogMetrics records named values at step 0
*/
func (r *Run) LogMetrics(ctx context.Context, values []model.NamedValue) error {
	for _, v := range values {
		if err := r.LogMetric(ctx, v.Name, v.Value); err != nil {
			return err
		}
	}
	return nil
}

// SetTag sets or overwrites a run tag
func (r *Run) SetTag(ctx context.Context, key, value string) error {
	if err := r.check("set tag"); err != nil {
		return err
	}
	if err := r.tracker.store.SetTag(ctx, r.info.RunID, key, value); err != nil {
		return fail("set tag", err)
	}
	return nil
}

/*
LogArtifact stores a local file under artifactPath directory of the run
*/
func (r *Run) LogArtifact(ctx context.Context, localFile, artifactPath string) error {
	if err := r.check("log artifact"); err != nil {
		return err
	}
	fi, err := os.Stat(localFile)
	if err != nil {
		return fail("log artifact", err)
	}
	if fi.IsDir() {
		return fail("log artifact", zorros.Errorf("%v is a directory", localFile))
	}
	if err = r.repo.LogArtifact(ctx, localFile, artifactPath); err != nil {
		return fail("log artifact", err)
	}
	return nil
}

/*
LogArtifacts stores content of a local directory under artifactPath directory of the run
*/
func (r *Run) LogArtifacts(ctx context.Context, localDir, artifactPath string) error {
	if err := r.check("log artifacts"); err != nil {
		return err
	}
	infos, err := ioutil.ReadDir(localDir)
	if err != nil {
		return fail("log artifacts", err)
	}
	for _, fi := range infos {
		p := filepath.Join(localDir, fi.Name())
		if fi.IsDir() {
			err = r.LogArtifacts(ctx, p, path.Join(artifactPath, fi.Name()))
		} else {
			err = r.repo.LogArtifact(ctx, p, artifactPath)
		}
		if err != nil {
			return fail("log artifacts", err)
		}
	}
	return nil
}

type modelHistory struct {
	RunID          string          `json:"run_id"`
	ArtifactPath   string          `json:"artifact_path"`
	UtcTimeCreated string          `json:"utc_time_created"`
	Flavors        map[string]bool `json:"flavors"`
}

/*
LogModel memorizes the model and stores it under artifactPath of the run
*/
func (r *Run) LogModel(ctx context.Context, m model.Model, artifactPath string) error {
	if err := r.check("log model"); err != nil {
		return err
	}
	dir := fu.StagePath(filepath.Join("staging", r.info.RunID, filepath.FromSlash(artifactPath)))
	if err := os.RemoveAll(dir); err != nil {
		return fail("log model", err)
	}
	defer os.RemoveAll(dir)
	now := r.tracker.now()
	if err := model.Memorize(dir, m, model.Meta{RunID: r.info.RunID, ArtifactPath: artifactPath, Created: now}); err != nil {
		return fail("log model", err)
	}
	if err := r.LogArtifacts(ctx, dir, artifactPath); err != nil {
		return err
	}
	h, err := json.Marshal([]modelHistory{{
		RunID:          r.info.RunID,
		ArtifactPath:   artifactPath,
		UtcTimeCreated: now.UTC().Format("2006-01-02 15:04:05.000000"),
		Flavors:        map[string]bool{m.Flavor(): true},
	}})
	if err != nil {
		return fail("log model", err)
	}
	return r.SetTag(ctx, TagLogModel, string(h))
}

/*
End closes the run with the terminal status, ending a closed run is a no-op
*/
func (r *Run) End(ctx context.Context, status RunStatus) error {
	if r.closed {
		return nil
	}
	if !status.Terminal() {
		return &LoggingError{Op: "end run", Err: zorros.Errorf("%v is not a terminal status", status)}
	}
	end := r.tracker.now()
	r.closed = true
	r.info.Status = status
	r.info.EndTime = &end
	if r.tracker.active == r {
		r.tracker.active = nil
	}
	if err := r.tracker.store.UpdateRun(ctx, r.info.RunID, status, end); err != nil {
		return fail("end run", err)
	}
	return nil
}
