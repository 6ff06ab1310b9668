package tables

import "fmt"

/*
LoadError reports a dataset that could not be fetched or parsed
*/
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load dataset %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
