/*
Package trainer is the pipeline resolving a DVC versioned dataset, fitting an elastic net on it
and recording the run in the experiment tracker
*/
package trainer

import (
	"context"
	"fmt"
	"go-ml.dev/pkg/dvcflow/dvc"
	"go-ml.dev/pkg/dvcflow/model"
	"go-ml.dev/pkg/dvcflow/model/elasticnet"
	"go-ml.dev/pkg/dvcflow/tables"
	"go-ml.dev/pkg/dvcflow/tracking"
	_ "go-ml.dev/pkg/dvcflow/tracking/rest"
	_ "go-ml.dev/pkg/dvcflow/tracking/s3artifacts"
	_ "go-ml.dev/pkg/dvcflow/tracking/sqlstore"
	"go-ml.dev/pkg/zorros/zlog"
	"io"
	"strconv"
)

const (
	// FeaturesFile lists feature columns
	FeaturesFile = "features.csv"
	// TargetsFile lists target columns
	TargetsFile = "targets.csv"
	// ModelPath is the artifact path of the logged model
	ModelPath = "model"
)

/*
Result is the outcome of a recorded run
*/
type Result struct {
	RunID   string
	Eval    *model.Eval // metrics on the test subset
	DataURL string
	Report  *model.Report
}

/*
Run executes the pipeline. Dataset resolution happens before the tracker is touched,
so an unresolvable dataset leaves no run behind.
*/
func Run(ctx context.Context, cfg Config, hp model.HyperParams, out io.Writer) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ref := dvc.Reference{Path: cfg.Data.Path, Repo: cfg.Data.Repo, Rev: cfg.Data.Rev}
	url, err := (&dvc.Locator{}).GetURL(ctx, ref)
	if err != nil {
		return nil, err
	}
	zlog.Info("dataset " + ref.String() + " is at " + url)

	tr, err := tracking.Open(cfg.Tracking.URI, cfg.trackingOptions())
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := tr.Close(); e != nil {
			zlog.Warning("failed to close tracker: " + e.Error())
		}
	}()
	if _, err = tr.SetExperiment(ctx, cfg.Tracking.Experiment); err != nil {
		return nil, err
	}

	data, err := tables.Load(ctx, url, cfg.Data.Sep, tables.WithObjectStorage(cfg.S3))
	if err != nil {
		return nil, err
	}
	cfg.verbose("loaded " + strconv.Itoa(data.Len()) + " rows, " + strconv.Itoa(data.Width()) + " columns")
	train, test, err := data.TrainTestSplit(cfg.Data.Seed, cfg.Data.TestSize)
	if err != nil {
		return nil, &model.FitError{Err: err}
	}
	trainDS := model.Dataset{Source: train, Label: cfg.Data.Target}
	testDS := model.Dataset{Source: test, Label: cfg.Data.Target}
	features, err := trainDS.Features()
	if err != nil {
		return nil, &model.FitError{Err: err}
	}
	targets, err := trainDS.Targets()
	if err != nil {
		return nil, &model.FitError{Err: err}
	}

	if err = tr.EndRun(ctx); err != nil {
		return nil, err
	}

	rev := cfg.Data.Rev
	if rev == "" {
		rev = "HEAD"
	}
	params := tracking.RunParams{
		DataURL:      url,
		Revision:     rev,
		InputRows:    data.Len(),
		InputColumns: data.Width(),
		Alpha:        hp.Alpha,
		L1Ratio:      hp.L1Ratio,
	}
	result := &Result{DataURL: url}
	err = tr.WithRun(ctx, "", func(run *tracking.Run) error {
		result.RunID = run.ID()
		if err := run.LogParams(ctx, params.Data()...); err != nil {
			return err
		}
		for _, l := range []struct {
			name string
			cols []string
		}{{FeaturesFile, features.Columns()}, {TargetsFile, targets.Columns()}} {
			p, err := tracking.WriteColumnList(cfg.OutputDir, l.name, l.cols)
			if err != nil {
				return err
			}
			if err = run.LogArtifact(ctx, p, ""); err != nil {
				return err
			}
		}

		en := elasticnet.New()
		en.Seed = cfg.ModelSeed
		en.Verbose = cfg.Verbose
		report, err := model.Training{Regressor: en, HyperParams: hp, Verbose: cfg.Verbose}.Train(trainDS, testDS)
		if err != nil {
			return err
		}
		result.Report = report
		result.Eval = report.Test

		WriteReport(out, hp, report.Test)

		if err := run.LogParams(ctx, params.Model()...); err != nil {
			return err
		}
		if err := run.LogMetrics(ctx, report.Test.Metrics()); err != nil {
			return err
		}
		return run.LogModel(ctx, report.Model, ModelPath)
	})
	if err != nil {
		return nil, err
	}
	zlog.Info("run " + result.RunID + " is recorded in experiment " + cfg.Tracking.Experiment)
	return result, nil
}

/*
WriteReport prints hyper-parameters and test metrics
*/
func WriteReport(out io.Writer, hp model.HyperParams, e *model.Eval) {
	if out == nil {
		return
	}
	fmt.Fprintf(out, "Elasticnet model (alpha=%f, l1_ratio=%f):\n", hp.Alpha, hp.L1Ratio)
	fmt.Fprintf(out, "  RMSE: %v\n", e.RMSE)
	fmt.Fprintf(out, "  MAE: %v\n", e.MAE)
	fmt.Fprintf(out, "  R2: %v\n", e.R2)
}
