package model

import (
	"go-ml.dev/pkg/zorros"
	"gonum.org/v1/gonum/mat"
	"math"
)

/*
Regressor is an ML algorithm fitting a model which predicts a scalar target from numeric features
*/
type Regressor interface {
	// Fit trains a model on x (rows x features) and target y,
	// features are names of x columns in order
	Fit(x *mat.Dense, y []float64, features []string, hp HyperParams) (Model, error)
}

/*
Model is a fitted prediction model, it's never mutated after fitting
*/
type Model interface {
	// Features model uses to predict,
	// the same as features in the training dataset
	Features() []string
	// Flavor identifies the model implementation
	// and is used to restore memorized model
	Flavor() string
	// Predict returns one prediction per row of x
	Predict(x mat.Matrix) ([]float64, error)
}

const (
	DefaultAlpha   = 0.5
	DefaultL1Ratio = 0.5
)

/*
HyperParams are the elastic net regularization parameters
*/
type HyperParams struct {
	Alpha   float64 // overall penalty strength, >= 0
	L1Ratio float64 // L1 vs L2 mix, 0 is ridge, 1 is lasso
}

/*
DefaultHyperParams returns alpha=0.5 and l1_ratio=0.5
*/
func DefaultHyperParams() HyperParams {
	return HyperParams{Alpha: DefaultAlpha, L1Ratio: DefaultL1Ratio}
}

// Validate checks alpha is in [0,inf) and l1_ratio is in [0,1]
func (hp HyperParams) Validate() error {
	if math.IsNaN(hp.Alpha) || math.IsInf(hp.Alpha, 0) || hp.Alpha < 0 {
		return zorros.Errorf("alpha must be a finite non-negative number, got %v", hp.Alpha)
	}
	if math.IsNaN(hp.L1Ratio) || hp.L1Ratio < 0 || hp.L1Ratio > 1 {
		return zorros.Errorf("l1_ratio must be in [0,1], got %v", hp.L1Ratio)
	}
	return nil
}
