package tracking

import (
	"context"
	"go-ml.dev/pkg/dvcflow/objstore"
	"go-ml.dev/pkg/zorros"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

/*
Store keeps experiments and runs metadata
*/
type Store interface {
	// GetExperimentByName returns nil and no error if there is no such experiment
	GetExperimentByName(ctx context.Context, name string) (*Experiment, error)
	// CreateExperiment returns id of the new experiment,
	// an empty artifactLocation lets the store choose it
	CreateExperiment(ctx context.Context, name, artifactLocation string) (string, error)
	CreateRun(ctx context.Context, experimentID, runName string, start time.Time, tags map[string]string) (*RunInfo, error)
	UpdateRun(ctx context.Context, runID string, status RunStatus, end time.Time) error
	LogParam(ctx context.Context, runID, key, value string) error
	LogMetric(ctx context.Context, runID string, m Metric) error
	SetTag(ctx context.Context, runID, key, value string) error
	GetRun(ctx context.Context, runID string) (*RunData, error)
	Close() error
}

/*
ArtifactRepository stores files of runs
*/
type ArtifactRepository interface {
	// LogArtifact copies the local file into artifactPath directory,
	// an empty artifactPath is the root of the repository
	LogArtifact(ctx context.Context, localFile, artifactPath string) error
	// ListArtifacts lists direct children of path
	ListArtifacts(ctx context.Context, path string) ([]FileInfo, error)
}

/*
Options configure stores and artifact repositories
*/
type Options struct {
	TrackingURI  string          // set by Open
	ArtifactRoot string          // where stores without own artifact management put new experiments
	Token        string          // bearer token of a tracking server
	Username     string          // basic auth of a tracking server
	Password     string          //
	S3           objstore.Config // object storage of s3:// artifact locations
	HTTPClient   *http.Client    // http.DefaultClient if nil
}

/*
StoreFactory opens a store for the uri
*/
type StoreFactory func(uri string, opts Options) (Store, error)

/*
ArtifactFactory opens an artifact repository rooted at the uri
*/
type ArtifactFactory func(uri string, opts Options) (ArtifactRepository, error)

var registry = struct {
	sync.RWMutex
	stores    map[string]StoreFactory
	artifacts map[string]ArtifactFactory
}{
	stores:    map[string]StoreFactory{},
	artifacts: map[string]ArtifactFactory{"file": newLocalRepository},
}

/*
RegisterStore makes a store available for uris with the scheme, it's called from init of store implementations
*/
func RegisterStore(scheme string, f StoreFactory) {
	registry.Lock()
	defer registry.Unlock()
	registry.stores[scheme] = f
}

/*
RegisterArtifactRepository makes a repository available for uris with the scheme
*/
func RegisterArtifactRepository(scheme string, f ArtifactFactory) {
	registry.Lock()
	defer registry.Unlock()
	registry.artifacts[scheme] = f
}

// StoreSchemes lists registered store schemes
func StoreSchemes() []string {
	registry.RLock()
	defer registry.RUnlock()
	r := []string{}
	for k := range registry.stores {
		r = append(r, k)
	}
	sort.Strings(r)
	return r
}

/*
Scheme returns lower-cased scheme of the uri, plain paths have scheme file
*/
func Scheme(uri string) string {
	i := strings.Index(uri, ":")
	// one letter is a windows drive
	if i <= 1 {
		return "file"
	}
	s := uri[:i]
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.') {
			return "file"
		}
	}
	return strings.ToLower(s)
}

/*
OpenStore opens the store registered for the uri scheme
*/
func OpenStore(uri string, opts Options) (Store, error) {
	registry.RLock()
	f, ok := registry.stores[Scheme(uri)]
	registry.RUnlock()
	if !ok {
		return nil, fail("open store", zorros.Errorf("unsupported tracking uri %q, known schemes are %v", uri, StoreSchemes()))
	}
	opts.TrackingURI = uri
	s, err := f(uri, opts)
	if err != nil {
		return nil, fail("open store", err)
	}
	return s, nil
}

/*
OpenArtifactRepository opens the repository registered for the uri scheme
*/
func OpenArtifactRepository(uri string, opts Options) (ArtifactRepository, error) {
	registry.RLock()
	f, ok := registry.artifacts[Scheme(uri)]
	registry.RUnlock()
	if !ok {
		return nil, fail("open artifact repository", zorros.Errorf("unsupported artifact uri %q", uri))
	}
	r, err := f(uri, opts)
	if err != nil {
		return nil, fail("open artifact repository", err)
	}
	return r, nil
}
