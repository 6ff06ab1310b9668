package tracking_test

import (
	"context"
	"errors"
	"go-ml.dev/pkg/dvcflow/model"
	"go-ml.dev/pkg/dvcflow/tracking"
	_ "go-ml.dev/pkg/dvcflow/tracking/sqlstore"
	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/mat"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/fs"
	"io/ioutil"
	"path/filepath"
	"sort"
	"testing"
)

func openTracker(t *testing.T) (*tracking.Tracker, *fs.Dir) {
	dir := fs.NewDir(t, "tracking")
	tr, err := tracking.Open("sqlite:///"+filepath.Join(dir.Path(), "mlruns.db"),
		tracking.Options{ArtifactRoot: filepath.Join(dir.Path(), "mlruns")})
	assert.NilError(t, err)
	return tr, dir
}

func isLoggingError(err error) bool {
	var le *tracking.LoggingError
	return xerrors.As(err, &le)
}

func artifactNames(t *testing.T, tr *tracking.Tracker, runID, path string) []string {
	files, err := tr.ListArtifacts(context.Background(), runID, path)
	assert.NilError(t, err)
	r := []string{}
	for _, f := range files {
		r = append(r, f.Path)
	}
	sort.Strings(r)
	return r
}

func Test_Scheme(t *testing.T) {
	assert.Equal(t, tracking.Scheme("sqlite:///mlruns.db"), "sqlite")
	assert.Equal(t, tracking.Scheme("HTTP://localhost:5000"), "http")
	assert.Equal(t, tracking.Scheme("s3://bucket/key"), "s3")
	assert.Equal(t, tracking.Scheme("mlflow-artifacts:/1/abc/artifacts"), "mlflow-artifacts")
	assert.Equal(t, tracking.Scheme("./mlruns"), "file")
	assert.Equal(t, tracking.Scheme("/var/lib/mlruns"), "file")
	assert.Equal(t, tracking.Scheme(`C:\mlruns`), "file")
	assert.Equal(t, tracking.LocalPath("file:///var/mlruns"), "/var/mlruns")
	assert.Equal(t, tracking.LocalPath("mlruns"), "mlruns")
}

func Test_UnsupportedStore(t *testing.T) {
	_, err := tracking.Open("gopher://somewhere", tracking.Options{})
	assert.Assert(t, isLoggingError(err))
	assert.ErrorContains(t, err, "unsupported tracking uri")
}

func Test_SetExperiment(t *testing.T) {
	tr, dir := openTracker(t)
	defer dir.Remove()
	defer tr.Close()
	ctx := context.Background()

	e1, err := tr.SetExperiment(ctx, "demo")
	assert.NilError(t, err)
	e2, err := tr.SetExperiment(ctx, "demo")
	assert.NilError(t, err)
	assert.Equal(t, e1.ID, e2.ID)
	assert.Equal(t, tr.Experiment().Name, "demo")

	_, err = tr.SetExperiment(ctx, "")
	assert.Assert(t, isLoggingError(err))
}

func Test_DefaultExperiment(t *testing.T) {
	tr, dir := openTracker(t)
	defer dir.Remove()
	defer tr.Close()

	run, err := tr.StartRun(context.Background(), "")
	assert.NilError(t, err)
	assert.Equal(t, tr.Experiment().Name, tracking.DefaultExperiment)
	assert.Equal(t, run.Info().ExperimentID, tr.Experiment().ID)
	assert.NilError(t, tr.EndRun(context.Background()))
	assert.Assert(t, tr.ActiveRun() == nil)
}

func Test_RunParams(t *testing.T) {
	tr, dir := openTracker(t)
	defer dir.Remove()
	defer tr.Close()
	ctx := context.Background()

	p := tracking.RunParams{DataURL: "s3://b/ab/cdef", Revision: "v2", InputRows: 1000, InputColumns: 12, Alpha: 0.5, L1Ratio: 0.25}
	keys := []string{}
	for _, x := range append(p.Data(), p.Model()...) {
		keys = append(keys, x.Key)
	}
	assert.DeepEqual(t, keys, []string{"data_url", "version", "input_rows", "input_columns", "alpha", "l1_ratio"})

	var runID string
	err := tr.WithRun(ctx, "params", func(run *tracking.Run) error {
		runID = run.ID()
		assert.NilError(t, run.LogParams(ctx, p.Data()...))
		// same values again are accepted
		assert.NilError(t, run.LogParams(ctx, p.Data()...))
		err := run.LogParam(ctx, "version", "v1")
		assert.Assert(t, isLoggingError(err))
		assert.ErrorContains(t, err, "version")
		return run.LogParams(ctx, p.Model()...)
	})
	assert.NilError(t, err)

	d, err := tr.GetRun(ctx, runID)
	assert.NilError(t, err)
	assert.Equal(t, d.Info.Status, tracking.RunStatusFinished)
	assert.Equal(t, len(d.Params), 6)
	assert.Equal(t, d.Params["version"], "v2")
	assert.Equal(t, d.Params["input_rows"], "1000")
	assert.Equal(t, d.Params["alpha"], "0.5")
	assert.Equal(t, d.Params["l1_ratio"], "0.25")
	assert.Equal(t, d.Tags[tracking.TagRunName], "params")
}

func Test_WithRunFailed(t *testing.T) {
	tr, dir := openTracker(t)
	defer dir.Remove()
	defer tr.Close()
	ctx := context.Background()

	var runID string
	boom := errors.New("boom")
	err := tr.WithRun(ctx, "failed", func(run *tracking.Run) error {
		runID = run.ID()
		return boom
	})
	assert.Equal(t, err, boom)
	d, err := tr.GetRun(ctx, runID)
	assert.NilError(t, err)
	assert.Equal(t, d.Info.Status, tracking.RunStatusFailed)
	assert.Assert(t, d.Info.EndTime != nil)
	assert.Assert(t, tr.ActiveRun() == nil)
}

func Test_WithRunPanic(t *testing.T) {
	tr, dir := openTracker(t)
	defer dir.Remove()
	defer tr.Close()
	ctx := context.Background()

	var runID string
	func() {
		defer func() {
			assert.Equal(t, recover(), "boom")
		}()
		tr.WithRun(ctx, "panic", func(run *tracking.Run) error {
			runID = run.ID()
			panic("boom")
		})
	}()
	d, err := tr.GetRun(ctx, runID)
	assert.NilError(t, err)
	assert.Equal(t, d.Info.Status, tracking.RunStatusFailed)
}

func Test_StaleRun(t *testing.T) {
	tr, dir := openTracker(t)
	defer dir.Remove()
	defer tr.Close()
	ctx := context.Background()

	first, err := tr.StartRun(ctx, "first")
	assert.NilError(t, err)
	second, err := tr.StartRun(ctx, "second")
	assert.NilError(t, err)
	assert.Assert(t, first.Closed())
	assert.Assert(t, tr.ActiveRun() == second)

	d, err := tr.GetRun(ctx, first.ID())
	assert.NilError(t, err)
	assert.Equal(t, d.Info.Status, tracking.RunStatusFinished)

	err = first.LogMetric(ctx, "rmse", 1)
	assert.Assert(t, isLoggingError(err))
	assert.Assert(t, isLoggingError(first.LogParam(ctx, "alpha", "1")))
	assert.Assert(t, isLoggingError(first.SetTag(ctx, "k", "v")))
	assert.NilError(t, first.End(ctx, tracking.RunStatusFailed))
	assert.Assert(t, isLoggingError(second.End(ctx, tracking.RunStatusRunning)))
}

func Test_CloseKillsRun(t *testing.T) {
	dir := fs.NewDir(t, "tracking")
	defer dir.Remove()
	uri := "sqlite:///" + filepath.Join(dir.Path(), "mlruns.db")
	opts := tracking.Options{ArtifactRoot: filepath.Join(dir.Path(), "mlruns")}
	ctx := context.Background()

	tr, err := tracking.Open(uri, opts)
	assert.NilError(t, err)
	run, err := tr.StartRun(ctx, "left")
	assert.NilError(t, err)
	assert.NilError(t, tr.Close())

	tr, err = tracking.Open(uri, opts)
	assert.NilError(t, err)
	defer tr.Close()
	d, err := tr.GetRun(ctx, run.ID())
	assert.NilError(t, err)
	assert.Equal(t, d.Info.Status, tracking.RunStatusKilled)
}

func Test_Metrics(t *testing.T) {
	tr, dir := openTracker(t)
	defer dir.Remove()
	defer tr.Close()
	ctx := context.Background()

	e, err := model.Evaluate([]float64{1, 2, 3, 4}, []float64{1, 3, 3, 2})
	assert.NilError(t, err)
	var runID string
	assert.NilError(t, tr.WithRun(ctx, "metrics", func(run *tracking.Run) error {
		runID = run.ID()
		return run.LogMetrics(ctx, e.Metrics())
	}))
	d, err := tr.GetRun(ctx, runID)
	assert.NilError(t, err)
	assert.Equal(t, len(d.Metrics), 3)
	assert.Equal(t, d.Metrics["rmse"].Value, e.RMSE)
	assert.Equal(t, d.Metrics["mae"].Value, e.MAE)
	assert.Equal(t, d.Metrics["r2"].Value, e.R2)
}

func Test_WriteColumnList(t *testing.T) {
	dir := fs.NewDir(t, "columns")
	defer dir.Remove()

	path, err := tracking.WriteColumnList(dir.Path(), "features.csv", []string{"x1", "x,2", "x3"})
	assert.NilError(t, err)
	bs, err := ioutil.ReadFile(path)
	assert.NilError(t, err)
	assert.Equal(t, string(bs), "x1\n\"x,2\"\nx3\n")

	_, err = tracking.WriteColumnList(filepath.Join(dir.Path(), "missing"), "targets.csv", []string{"y"})
	assert.Assert(t, isLoggingError(err))
}

func Test_Artifacts(t *testing.T) {
	tr, dir := openTracker(t)
	defer dir.Remove()
	defer tr.Close()
	ctx := context.Background()

	out := fs.NewDir(t, "output")
	defer out.Remove()
	features, err := tracking.WriteColumnList(out.Path(), "features.csv", []string{"x1", "x2"})
	assert.NilError(t, err)
	targets, err := tracking.WriteColumnList(out.Path(), "targets.csv", []string{"y"})
	assert.NilError(t, err)

	m, err := model.DummyRegressor{}.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4}), []float64{1, 3}, []string{"x1", "x2"}, model.DefaultHyperParams())
	assert.NilError(t, err)

	var runID string
	assert.NilError(t, tr.WithRun(ctx, "artifacts", func(run *tracking.Run) error {
		runID = run.ID()
		assert.NilError(t, run.LogArtifact(ctx, features, ""))
		assert.NilError(t, run.LogArtifact(ctx, targets, ""))
		assert.Assert(t, isLoggingError(run.LogArtifact(ctx, out.Path(), "")))
		assert.Assert(t, isLoggingError(run.LogArtifact(ctx, filepath.Join(out.Path(), "none.csv"), "")))
		return run.LogModel(ctx, m, "model")
	}))

	assert.DeepEqual(t, artifactNames(t, tr, runID, ""), []string{"features.csv", "model", "targets.csv"})
	assert.DeepEqual(t, artifactNames(t, tr, runID, "model"), []string{"model/" + model.DescriptorFile, "model/" + model.PayloadFile})

	d, err := tr.GetRun(ctx, runID)
	assert.NilError(t, err)
	assert.Assert(t, d.Tags[tracking.TagLogModel] != "")

	restored, err := model.Restore(filepath.Join(tracking.LocalPath(d.Info.ArtifactURI), "model"))
	assert.NilError(t, err)
	assert.DeepEqual(t, restored.Features(), []string{"x1", "x2"})
	p, err := restored.Predict(mat.NewDense(1, 2, []float64{0, 0}))
	assert.NilError(t, err)
	assert.DeepEqual(t, p, []float64{2})
}
