package tracking

import "fmt"

/*
LoggingError reports a tracking backend or a filesystem failure while recording a run
*/
type LoggingError struct {
	Op  string
	Err error
}

func (e *LoggingError) Error() string {
	return fmt.Sprintf("tracking: %s: %v", e.Op, e.Err)
}

func (e *LoggingError) Unwrap() error { return e.Err }

func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	if le, ok := err.(*LoggingError); ok {
		return le
	}
	return &LoggingError{Op: op, Err: err}
}
