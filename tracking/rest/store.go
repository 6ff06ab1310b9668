package rest

import (
	"context"
	"go-ml.dev/pkg/dvcflow/tracking"
	"go-ml.dev/pkg/zorros"
	"net/http"
	"net/url"
	"time"
)

type keyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type experiment struct {
	ID               string  `json:"experiment_id"`
	Name             string  `json:"name"`
	ArtifactLocation string  `json:"artifact_location"`
	LifecycleStage   string  `json:"lifecycle_stage"`
	CreationTime     jsonInt `json:"creation_time"`
}

type runInfo struct {
	RunID        string  `json:"run_id"`
	RunUUID      string  `json:"run_uuid"`
	ExperimentID string  `json:"experiment_id"`
	RunName      string  `json:"run_name"`
	Status       string  `json:"status"`
	StartTime    jsonInt `json:"start_time"`
	EndTime      jsonInt `json:"end_time"`
	ArtifactURI  string  `json:"artifact_uri"`
}

type metric struct {
	Key       string  `json:"key"`
	Value     number  `json:"value"`
	Timestamp jsonInt `json:"timestamp"`
	Step      jsonInt `json:"step"`
}

type run struct {
	Info runInfo `json:"info"`
	Data struct {
		Metrics []metric   `json:"metrics"`
		Params  []keyValue `json:"params"`
		Tags    []keyValue `json:"tags"`
	} `json:"data"`
}

func (r runInfo) convert() tracking.RunInfo {
	id := r.RunID
	if id == "" {
		id = r.RunUUID
	}
	i := tracking.RunInfo{
		RunID:        id,
		ExperimentID: r.ExperimentID,
		RunName:      r.RunName,
		Status:       tracking.RunStatus(r.Status),
		StartTime:    r.StartTime.Time(),
		ArtifactURI:  r.ArtifactURI,
	}
	if r.EndTime != 0 {
		t := r.EndTime.Time()
		i.EndTime = &t
	}
	return i
}

/*
Store keeps runs on a remote MLflow tracking server
*/
type Store struct {
	*Client
}

/*
New connects to the tracking server at uri
*/
func New(uri string, opts tracking.Options) (*Store, error) {
	c, err := NewClient(uri, opts)
	if err != nil {
		return nil, err
	}
	return &Store{c}, nil
}

func (s *Store) GetExperimentByName(ctx context.Context, name string) (*tracking.Experiment, error) {
	out := struct {
		Experiment experiment `json:"experiment"`
	}{}
	err := s.call(ctx, http.MethodGet, "experiments/get-by-name", url.Values{"experiment_name": {name}}, nil, &out)
	if e, ok := err.(*APIError); ok && e.NotFound() {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e := out.Experiment
	return &tracking.Experiment{
		ID:               e.ID,
		Name:             e.Name,
		ArtifactLocation: e.ArtifactLocation,
		LifecycleStage:   e.LifecycleStage,
		CreationTime:     e.CreationTime.Time(),
	}, nil
}

func (s *Store) CreateExperiment(ctx context.Context, name, artifactLocation string) (string, error) {
	in := struct {
		Name             string `json:"name"`
		ArtifactLocation string `json:"artifact_location,omitempty"`
	}{name, artifactLocation}
	out := struct {
		ID string `json:"experiment_id"`
	}{}
	if err := s.call(ctx, http.MethodPost, "experiments/create", nil, in, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", zorros.Errorf("tracking server returned no experiment id")
	}
	return out.ID, nil
}

func (s *Store) CreateRun(ctx context.Context, experimentID, runName string, start time.Time, tags map[string]string) (*tracking.RunInfo, error) {
	in := struct {
		ExperimentID string     `json:"experiment_id"`
		RunName      string     `json:"run_name,omitempty"`
		StartTime    int64      `json:"start_time"`
		Tags         []keyValue `json:"tags,omitempty"`
	}{ExperimentID: experimentID, RunName: runName, StartTime: msOf(start)}
	for k, v := range tags {
		in.Tags = append(in.Tags, keyValue{k, v})
	}
	out := struct {
		Run run `json:"run"`
	}{}
	if err := s.call(ctx, http.MethodPost, "runs/create", nil, in, &out); err != nil {
		return nil, err
	}
	info := out.Run.Info.convert()
	if info.RunID == "" {
		return nil, zorros.Errorf("tracking server returned no run id")
	}
	return &info, nil
}

func (s *Store) UpdateRun(ctx context.Context, runID string, status tracking.RunStatus, end time.Time) error {
	in := struct {
		RunID   string `json:"run_id"`
		Status  string `json:"status"`
		EndTime int64  `json:"end_time"`
	}{runID, string(status), msOf(end)}
	return s.call(ctx, http.MethodPost, "runs/update", nil, in, nil)
}

func (s *Store) LogParam(ctx context.Context, runID, key, value string) error {
	in := struct {
		RunID string `json:"run_id"`
		keyValue
	}{runID, keyValue{key, value}}
	return s.call(ctx, http.MethodPost, "runs/log-parameter", nil, in, nil)
}

func (s *Store) LogMetric(ctx context.Context, runID string, m tracking.Metric) error {
	in := struct {
		RunID     string `json:"run_id"`
		Key       string `json:"key"`
		Value     number `json:"value"`
		Timestamp int64  `json:"timestamp"`
		Step      int64  `json:"step"`
	}{runID, m.Key, number(m.Value), msOf(m.Timestamp), m.Step}
	return s.call(ctx, http.MethodPost, "runs/log-metric", nil, in, nil)
}

func (s *Store) SetTag(ctx context.Context, runID, key, value string) error {
	in := struct {
		RunID string `json:"run_id"`
		keyValue
	}{runID, keyValue{key, value}}
	return s.call(ctx, http.MethodPost, "runs/set-tag", nil, in, nil)
}

func (s *Store) GetRun(ctx context.Context, runID string) (*tracking.RunData, error) {
	out := struct {
		Run run `json:"run"`
	}{}
	if err := s.call(ctx, http.MethodGet, "runs/get", url.Values{"run_id": {runID}}, nil, &out); err != nil {
		return nil, err
	}
	d := &tracking.RunData{
		Info:    out.Run.Info.convert(),
		Params:  map[string]string{},
		Metrics: map[string]tracking.Metric{},
		Tags:    map[string]string{},
	}
	for _, p := range out.Run.Data.Params {
		d.Params[p.Key] = p.Value
	}
	for _, t := range out.Run.Data.Tags {
		d.Tags[t.Key] = t.Value
	}
	for _, m := range out.Run.Data.Metrics {
		d.Metrics[m.Key] = tracking.Metric{Key: m.Key, Value: float64(m.Value), Timestamp: m.Timestamp.Time(), Step: int64(m.Step)}
	}
	return d, nil
}

// Close does nothing, the client holds no connections of its own
func (s *Store) Close() error { return nil }
