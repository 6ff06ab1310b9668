package sqlstore

import (
	"context"
	"go-ml.dev/pkg/dvcflow/tracking"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/fs"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newStore(t *testing.T) (*Store, *fs.Dir) {
	dir := fs.NewDir(t, "sqlstore")
	s, err := New(filepath.Join(dir.Path(), "mlflow.db"), filepath.Join(dir.Path(), "artifacts"))
	assert.NilError(t, err)
	return s, dir
}

func Test_DatabasePath(t *testing.T) {
	assert.Equal(t, DatabasePath("sqlite:///mlruns.db"), "mlruns.db")
	assert.Equal(t, DatabasePath("sqlite:////tmp/mlruns.db"), "/tmp/mlruns.db")
	assert.Equal(t, DatabasePath("sqlite:mlruns.db"), "mlruns.db")
}

func Test_Experiments(t *testing.T) {
	s, dir := newStore(t)
	defer dir.Remove()
	defer s.Close()
	ctx := context.Background()

	e, err := s.GetExperimentByName(ctx, "demo")
	assert.NilError(t, err)
	assert.Assert(t, e == nil)

	id, err := s.CreateExperiment(ctx, "demo", "")
	assert.NilError(t, err)
	e, err = s.GetExperimentByName(ctx, "demo")
	assert.NilError(t, err)
	assert.Equal(t, e.ID, id)
	assert.Equal(t, e.Name, "demo")
	assert.Equal(t, e.LifecycleStage, "active")
	assert.Equal(t, e.ArtifactLocation, filepath.Join(dir.Path(), "artifacts")+"/"+id)

	_, err = s.CreateExperiment(ctx, "demo", "")
	assert.ErrorContains(t, err, "demo")

	id2, err := s.CreateExperiment(ctx, "remote", "s3://bucket/exp")
	assert.NilError(t, err)
	assert.Assert(t, id2 != id)
	e, err = s.GetExperimentByName(ctx, "remote")
	assert.NilError(t, err)
	assert.Equal(t, e.ArtifactLocation, "s3://bucket/exp")
}

func Test_RunLifecycle(t *testing.T) {
	s, dir := newStore(t)
	defer dir.Remove()
	defer s.Close()
	ctx := context.Background()

	expID, err := s.CreateExperiment(ctx, "demo", "s3://bucket/exp/")
	assert.NilError(t, err)
	start := time.Unix(1600000000, 123000000)
	info, err := s.CreateRun(ctx, expID, "", start, map[string]string{tracking.TagSourceName: "train"})
	assert.NilError(t, err)
	assert.Equal(t, len(info.RunID), 32)
	assert.Assert(t, strings.HasPrefix(info.RunName, "run-"))
	assert.Equal(t, info.Status, tracking.RunStatusRunning)
	assert.Equal(t, info.ArtifactURI, "s3://bucket/exp/"+info.RunID+"/artifacts")

	assert.NilError(t, s.LogParam(ctx, info.RunID, "alpha", "0.5"))
	assert.NilError(t, s.LogParam(ctx, info.RunID, "alpha", "0.5"))
	assert.ErrorContains(t, s.LogParam(ctx, info.RunID, "alpha", "0.7"), "alpha")

	assert.NilError(t, s.LogMetric(ctx, info.RunID, tracking.Metric{Key: "rmse", Value: 2, Timestamp: start, Step: 0}))
	assert.NilError(t, s.LogMetric(ctx, info.RunID, tracking.Metric{Key: "rmse", Value: 1, Timestamp: start, Step: 1}))
	assert.NilError(t, s.LogMetric(ctx, info.RunID, tracking.Metric{Key: "r2", Value: math.NaN(), Timestamp: start}))
	assert.NilError(t, s.LogMetric(ctx, info.RunID, tracking.Metric{Key: "mae", Value: math.Inf(1), Timestamp: start}))
	assert.NilError(t, s.SetTag(ctx, info.RunID, "note", "a"))
	assert.NilError(t, s.SetTag(ctx, info.RunID, "note", "b"))

	end := start.Add(time.Minute)
	assert.NilError(t, s.UpdateRun(ctx, info.RunID, tracking.RunStatusFinished, end))

	d, err := s.GetRun(ctx, info.RunID)
	assert.NilError(t, err)
	assert.Equal(t, d.Info.Status, tracking.RunStatusFinished)
	assert.Equal(t, d.Info.ExperimentID, expID)
	assert.Assert(t, d.Info.StartTime.Equal(start))
	assert.Assert(t, d.Info.EndTime != nil && d.Info.EndTime.Equal(end))
	assert.DeepEqual(t, d.Params, map[string]string{"alpha": "0.5"})
	assert.Equal(t, d.Tags["note"], "b")
	assert.Equal(t, d.Tags[tracking.TagSourceName], "train")
	assert.Equal(t, d.Metrics["rmse"].Value, 1.0)
	assert.Equal(t, d.Metrics["rmse"].Step, int64(1))
	assert.Assert(t, math.IsNaN(d.Metrics["r2"].Value))
	assert.Equal(t, d.Metrics["mae"].Value, math.MaxFloat64)

	assert.ErrorContains(t, s.LogParam(ctx, info.RunID, "l1_ratio", "0.5"), "FINISHED")
	assert.ErrorContains(t, s.LogMetric(ctx, info.RunID, tracking.Metric{Key: "x"}), "FINISHED")
}

func Test_UnknownRun(t *testing.T) {
	s, dir := newStore(t)
	defer dir.Remove()
	defer s.Close()
	ctx := context.Background()

	_, err := s.CreateRun(ctx, "42", "x", time.Now(), nil)
	assert.ErrorContains(t, err, "no experiment")
	_, err = s.GetRun(ctx, "nope")
	assert.ErrorContains(t, err, "no run")
	assert.ErrorContains(t, s.UpdateRun(ctx, "nope", tracking.RunStatusFailed, time.Now()), "no run")
	assert.ErrorContains(t, s.SetTag(ctx, "nope", "k", "v"), "no run")
}

func Test_OpenByURI(t *testing.T) {
	dir := fs.NewDir(t, "sqlstore")
	defer dir.Remove()
	opts := tracking.Options{ArtifactRoot: filepath.Join(dir.Path(), "artifacts")}

	s, err := tracking.OpenStore("sqlite:///"+filepath.Join(dir.Path(), "runs.db"), opts)
	assert.NilError(t, err)
	assert.NilError(t, s.Close())

	s, err = tracking.OpenStore("file://"+filepath.Join(dir.Path(), "mlruns"), tracking.Options{})
	assert.NilError(t, err)
	defer s.Close()
	ctx := context.Background()
	id, err := s.CreateExperiment(ctx, "demo", "")
	assert.NilError(t, err)
	e, err := s.GetExperimentByName(ctx, "demo")
	assert.NilError(t, err)
	assert.Equal(t, e.ArtifactLocation, filepath.Join(dir.Path(), "mlruns")+"/"+id)
}

func Test_WritesPersist(t *testing.T) {
	s, dir := newStore(t)
	defer dir.Remove()
	ctx := context.Background()

	expID, err := s.CreateExperiment(ctx, "demo", "")
	assert.NilError(t, err)
	info, err := s.CreateRun(ctx, expID, "persist", time.Unix(1600000000, 0), nil)
	assert.NilError(t, err)
	err = s.LogParam(ctx, info.RunID, "alpha", "0.5")
	assert.Assert(t, err == nil, "log param: %v", err)
	err = s.LogMetric(ctx, info.RunID, tracking.Metric{Key: "rmse", Value: 0.25, Timestamp: time.Unix(1600000001, 0)})
	assert.Assert(t, err == nil, "log metric: %v", err)
	err = s.SetTag(ctx, info.RunID, "stage", "train")
	assert.Assert(t, err == nil, "set tag: %v", err)
	assert.NilError(t, s.Close())

	s, err = New(filepath.Join(dir.Path(), "mlflow.db"), filepath.Join(dir.Path(), "artifacts"))
	assert.NilError(t, err)
	defer s.Close()
	d, err := s.GetRun(ctx, info.RunID)
	assert.Assert(t, err == nil, "get run: %v", err)
	assert.Equal(t, d.Info.RunName, "persist")
	assert.DeepEqual(t, d.Params, map[string]string{"alpha": "0.5"})
	assert.Equal(t, d.Metrics["rmse"].Value, 0.25)
	assert.Equal(t, d.Tags["stage"], "train")
}
