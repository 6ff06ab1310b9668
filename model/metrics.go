package model

import (
	"go-ml.dev/pkg/dvcflow/fu"
	"go-ml.dev/pkg/zorros"
	"gonum.org/v1/gonum/stat"
	"math"
)

/*
Eval is a regression quality report
*/
type Eval struct {
	// RMSE is the root of mean squared error.
	RMSE float64

	// MAE is the mean absolute error.
	MAE float64

	// R2 is the coefficient of determination, NaN when actual values have no variance.
	R2 float64
}

/*
Evaluate calculates RMSE, MAE and R² of predicted against actual values
*/
func Evaluate(actual, predicted []float64) (*Eval, error) {
	if len(actual) != len(predicted) {
		return nil, zorros.Errorf("actual and predicted have different lengths %d != %d", len(actual), len(predicted))
	}
	if len(actual) == 0 {
		return nil, zorros.Errorf("nothing to evaluate")
	}
	e := &Eval{
		RMSE: math.Sqrt(fu.Mse(actual, predicted)),
		MAE:  fu.Mae(actual, predicted),
		R2:   math.NaN(),
	}
	if fu.Sst(actual) != 0 {
		e.R2 = stat.RSquaredFrom(predicted, actual, nil)
	}
	return e, nil
}

// Metrics returns the report as named values in logging order
func (e *Eval) Metrics() []NamedValue {
	return []NamedValue{{"rmse", e.RMSE}, {"r2", e.R2}, {"mae", e.MAE}}
}

// CheckEval fails if any of metrics is NaN, R2 is NaN on a constant target
func (e *Eval) CheckEval() error {
	for _, m := range e.Metrics() {
		if math.IsNaN(m.Value) {
			return zorros.Errorf("%v is NAN", m.Name)
		}
	}
	return nil
}

/*
NamedValue is a named scalar
*/
type NamedValue struct {
	Name  string
	Value float64
}
