package model

import "fmt"

/*
FitError reports training inputs a model can't be fitted on
*/
type FitError struct {
	Err error
}

func (e *FitError) Error() string {
	return fmt.Sprintf("failed to fit model: %v", e.Err)
}

func (e *FitError) Unwrap() error { return e.Err }
