package model

import (
	"encoding/json"
	"go-ml.dev/pkg/dvcflow/fu"
	"go-ml.dev/pkg/zorros"
	"gonum.org/v1/gonum/mat"
	"io"
)

// DummyFlavor identifies DummyModel
const DummyFlavor = "dvcflow.dummy"

func init() {
	RegisterFlavor(DummyFlavor, func(rd io.Reader) (Model, error) {
		m := &DummyModel{}
		if err := json.NewDecoder(rd).Decode(m); err != nil {
			return nil, zorros.Trace(err)
		}
		return m, nil
	})
}

/*
DummyRegressor ignores features and predicts the mean of training target,
it's a baseline and a deterministic stand-in for real regressors
*/
type DummyRegressor struct{}

// Fit implements Regressor
func (DummyRegressor) Fit(x *mat.Dense, y []float64, features []string, hp HyperParams) (Model, error) {
	rows, cols := x.Dims()
	if rows != len(y) {
		return nil, &FitError{zorros.Errorf("features have %d rows but target has %d", rows, len(y))}
	}
	if cols != len(features) {
		return nil, &FitError{zorros.Errorf("features have %d columns but %d names", cols, len(features))}
	}
	if len(y) == 0 {
		return nil, &FitError{zorros.Errorf("empty training set")}
	}
	return &DummyModel{Names: append([]string(nil), features...), Mean: fu.Mean(y)}, nil
}

/*
DummyModel predicts a constant
*/
type DummyModel struct {
	Names []string `json:"features"`
	Mean  float64  `json:"mean"`
}

func (m *DummyModel) Features() []string { return m.Names }
func (m *DummyModel) Flavor() string     { return DummyFlavor }

func (m *DummyModel) Predict(x mat.Matrix) ([]float64, error) {
	rows, cols := x.Dims()
	if cols != len(m.Names) {
		return nil, zorros.Errorf("model expects %d features, got %d", len(m.Names), cols)
	}
	r := make([]float64, rows)
	for i := range r {
		r[i] = m.Mean
	}
	return r, nil
}
