package model

import (
	"fmt"
	"go-ml.dev/pkg/zorros"
	"go-ml.dev/pkg/zorros/zlog"
	"gonum.org/v1/gonum/mat"
)

/*
Training is the default fit-and-evaluate procedure: the model is fitted on the train subset
and scored on the test subset
*/
type Training struct {
	Regressor   Regressor    // algorithm to fit
	HyperParams HyperParams  // regularization parameters
	Verbose     func(string) // print function, optional
}

/*
Report is an ML training report
*/
type Report struct {
	Model       Model     // fitted model
	Train, Test *Eval     // metrics on both subsets
	Predicted   []float64 // predictions on the test subset
	Actual      []float64 // test subset targets
}

/*
Train fits the model and evaluates it, bad inputs are reported as FitError
*/
func (t Training) Train(train, test Dataset) (*Report, error) {
	if t.Regressor == nil {
		return nil, &FitError{zorros.Errorf("training has no regressor")}
	}
	if err := t.HyperParams.Validate(); err != nil {
		return nil, &FitError{err}
	}
	x, y, features, err := train.XY()
	if err != nil {
		return nil, err
	}
	t.verbose(fmt.Sprintf("fitting on %d rows, %d features", len(y), len(features)))
	m, err := t.Regressor.Fit(x, y, features, t.HyperParams)
	if err != nil {
		return nil, err
	}
	report := &Report{Model: m}
	if report.Train, _, err = score(m, x, y); err != nil {
		return nil, err
	}
	tx, ty, _, err := test.XY()
	if err != nil {
		return nil, err
	}
	if report.Test, report.Predicted, err = score(m, tx, ty); err != nil {
		return nil, err
	}
	report.Actual = ty
	if err := report.Test.CheckEval(); err != nil {
		zlog.Warning(fmt.Sprintf("test metrics are undefined: %v", err))
	}
	t.verbose(fmt.Sprintf("rmse: %.5f/%.5f, mae: %.5f/%.5f, r2: %.5f/%.5f",
		report.Train.RMSE, report.Test.RMSE,
		report.Train.MAE, report.Test.MAE,
		report.Train.R2, report.Test.R2))
	return report, nil
}

func score(m Model, x mat.Matrix, y []float64) (*Eval, []float64, error) {
	predicted, err := m.Predict(x)
	if err != nil {
		return nil, nil, err
	}
	e, err := Evaluate(y, predicted)
	if err != nil {
		return nil, nil, err
	}
	return e, predicted, nil
}

func (t Training) verbose(s string) {
	if t.Verbose != nil {
		t.Verbose(s)
	}
}
