/*
Package tracking records training runs in an MLflow compatible experiment tracker.

A Tracker talks to one Store holding experiments, runs, parameters, metrics and tags,
and resolves an ArtifactRepository for every run from the run's artifact URI.
A Run is the token all logging goes through, it's opened by Tracker.StartRun or
Tracker.WithRun and is closed exactly once.
*/
package tracking

import "time"

/*
RunStatus is the lifecycle state of a run
*/
type RunStatus string

const (
	RunStatusRunning  RunStatus = "RUNNING"
	RunStatusFinished RunStatus = "FINISHED"
	RunStatusFailed   RunStatus = "FAILED"
	RunStatusKilled   RunStatus = "KILLED"
)

// Terminal reports whether the run can't be logged to anymore
func (s RunStatus) Terminal() bool {
	return s == RunStatusFinished || s == RunStatusFailed || s == RunStatusKilled
}

/*
Experiment groups runs under a name
*/
type Experiment struct {
	ID               string
	Name             string
	ArtifactLocation string
	LifecycleStage   string
	CreationTime     time.Time
}

/*
RunInfo is the run metadata
*/
type RunInfo struct {
	RunID        string
	ExperimentID string
	RunName      string
	Status       RunStatus
	StartTime    time.Time
	EndTime      *time.Time
	ArtifactURI  string
}

/*
Metric is a single point of a metric time series
*/
type Metric struct {
	Key       string
	Value     float64
	Timestamp time.Time
	Step      int64
}

/*
RunData is the run with all logged values, Metrics keeps the latest point of every series
*/
type RunData struct {
	Info    RunInfo
	Params  map[string]string
	Metrics map[string]Metric
	Tags    map[string]string
}

/*
FileInfo describes an artifact
*/
type FileInfo struct {
	Path  string // relative to the run artifact root
	IsDir bool
	Size  int64
}

const (
	TagRunName    = "mlflow.runName"
	TagSourceName = "mlflow.source.name"
	TagSourceType = "mlflow.source.type"
	TagUser       = "mlflow.user"
	TagLogModel   = "mlflow.log-model.history"
)
