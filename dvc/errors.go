package dvc

import "fmt"

/*
ResolutionError reports a dataset reference which can't be resolved to a storage url
*/
type ResolutionError struct {
	Ref Reference
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("dvc: failed to resolve %v: %v", e.Ref, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }
