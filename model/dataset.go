package model

import (
	"go-ml.dev/pkg/dvcflow/tables"
	"go-ml.dev/pkg/zorros"
	"gonum.org/v1/gonum/mat"
)

/*
Dataset is a table with one designated label column, all other columns are features
*/
type Dataset struct {
	Source *tables.Table
	Label  string // name of the numeric column containing target
}

/*
Features returns the table without the label column
*/
func (ds Dataset) Features() (*tables.Table, error) {
	return ds.Source.Except(ds.Label)
}

/*
Targets returns the single-column table holding the label
*/
func (ds Dataset) Targets() (*tables.Table, error) {
	return ds.Source.Only(ds.Label)
}

/*
XY returns the features matrix, the target vector and the feature names,
non-numeric cells and a missing label are reported as FitError
*/
func (ds Dataset) XY() (x *mat.Dense, y []float64, features []string, err error) {
	if ds.Source == nil {
		return nil, nil, nil, &FitError{zorros.Errorf("dataset has no source")}
	}
	label := ds.Source.Col(ds.Label)
	if label == nil {
		return nil, nil, nil, &FitError{zorros.Errorf("dataset does not have label column `%v`", ds.Label)}
	}
	if y, err = label.Floats(); err != nil {
		return nil, nil, nil, &FitError{zorros.Wrapf(err, "label column `%v`", ds.Label)}
	}
	ft, err := ds.Features()
	if err != nil {
		return nil, nil, nil, &FitError{err}
	}
	if x, err = ft.Matrix(); err != nil {
		return nil, nil, nil, &FitError{err}
	}
	return x, y, ft.Columns(), nil
}
