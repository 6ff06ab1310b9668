package tracking

import (
	"context"
	"go-ml.dev/pkg/zorros"
	"go-ml.dev/pkg/zorros/zlog"
	"os"
	"path/filepath"
	"time"
)

// DefaultExperiment is used when a run starts before any experiment is set
const DefaultExperiment = "Default"

/*
Tracker records runs of one experiment at a time and holds at most one open run
*/
type Tracker struct {
	store  Store
	opts   Options
	exp    *Experiment
	active *Run
	now    func() time.Time
}

/*
Open connects a tracker to the store addressed by uri
*/
func Open(uri string, opts Options) (*Tracker, error) {
	s, err := OpenStore(uri, opts)
	if err != nil {
		return nil, err
	}
	opts.TrackingURI = uri
	return New(s, opts), nil
}

/*
New creates a tracker over an opened store
*/
func New(store Store, opts Options) *Tracker {
	return &Tracker{store: store, opts: opts, now: time.Now}
}

// Store returns the backing store
func (t *Tracker) Store() Store { return t.store }

// Experiment returns the current experiment or nil
func (t *Tracker) Experiment() *Experiment { return t.exp }

// ActiveRun returns the open run or nil
func (t *Tracker) ActiveRun() *Run { return t.active }

/*
SetExperiment makes the named experiment current creating it when it does not exist
*/
func (t *Tracker) SetExperiment(ctx context.Context, name string) (*Experiment, error) {
	if name == "" {
		return nil, fail("set experiment", zorros.Errorf("empty experiment name"))
	}
	exp, err := t.store.GetExperimentByName(ctx, name)
	if err != nil {
		return nil, fail("set experiment", err)
	}
	if exp == nil {
		if _, err = t.store.CreateExperiment(ctx, name, ""); err != nil {
			return nil, fail("create experiment", err)
		}
		if exp, err = t.store.GetExperimentByName(ctx, name); err != nil {
			return nil, fail("set experiment", err)
		}
		if exp == nil {
			return nil, fail("set experiment", zorros.Errorf("experiment `%v` disappeared after creation", name))
		}
		zlog.Info("created experiment " + name + " with id " + exp.ID)
	}
	t.exp = exp
	return exp, nil
}

/*
StartRun opens a new run in the current experiment, a run the tracker still holds is finished first
*/
func (t *Tracker) StartRun(ctx context.Context, name string) (*Run, error) {
	if t.active != nil {
		zlog.Warning("finishing run " + t.active.ID() + " left open")
		if err := t.EndRun(ctx); err != nil {
			return nil, err
		}
	}
	if t.exp == nil {
		if _, err := t.SetExperiment(ctx, DefaultExperiment); err != nil {
			return nil, err
		}
	}
	tags := map[string]string{
		TagSourceName: filepath.Base(os.Args[0]),
		TagSourceType: "LOCAL",
	}
	if u := os.Getenv("USER"); u != "" {
		tags[TagUser] = u
	}
	if name != "" {
		tags[TagRunName] = name
	}
	info, err := t.store.CreateRun(ctx, t.exp.ID, name, t.now(), tags)
	if err != nil {
		return nil, fail("start run", err)
	}
	repo, err := OpenArtifactRepository(info.ArtifactURI, t.opts)
	if err != nil {
		t.store.UpdateRun(ctx, info.RunID, RunStatusFailed, t.now())
		return nil, err
	}
	t.active = &Run{tracker: t, info: *info, repo: repo, params: map[string]string{}}
	return t.active, nil
}

/*
EndRun finishes the open run if there is one
*/
func (t *Tracker) EndRun(ctx context.Context) error {
	if t.active == nil {
		return nil
	}
	return t.active.End(ctx, RunStatusFinished)
}

/*
WithRun executes fn inside a new run. The run is finished when fn returns nil
and marked failed when fn returns an error or panics, the panic goes on after that.
*/
func (t *Tracker) WithRun(ctx context.Context, name string, fn func(*Run) error) (err error) {
	run, err := t.StartRun(ctx, name)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			if e := run.End(ctx, RunStatusFailed); e != nil {
				zlog.Warning("failed to close run " + run.ID() + ": " + e.Error())
			}
			panic(p)
		}
		status := RunStatusFinished
		if err != nil {
			status = RunStatusFailed
		}
		if e := run.End(ctx, status); e != nil && err == nil {
			err = e
		}
	}()
	return fn(run)
}

/*
GetRun reads the run back from the store
*/
func (t *Tracker) GetRun(ctx context.Context, runID string) (*RunData, error) {
	d, err := t.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fail("get run", err)
	}
	return d, nil
}

/*
ListArtifacts lists artifacts of the run under path
*/
func (t *Tracker) ListArtifacts(ctx context.Context, runID, path string) ([]FileInfo, error) {
	d, err := t.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	repo, err := OpenArtifactRepository(d.Info.ArtifactURI, t.opts)
	if err != nil {
		return nil, err
	}
	files, err := repo.ListArtifacts(ctx, path)
	if err != nil {
		return nil, fail("list artifacts", err)
	}
	return files, nil
}

/*
Close kills a run left open and closes the store
*/
func (t *Tracker) Close() error {
	var err error
	if t.active != nil {
		err = t.active.End(context.Background(), RunStatusKilled)
	}
	if e := t.store.Close(); e != nil && err == nil {
		err = fail("close store", e)
	}
	return err
}
