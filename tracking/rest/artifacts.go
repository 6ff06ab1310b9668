package rest

import (
	"context"
	"encoding/json"
	"go-ml.dev/pkg/dvcflow/tracking"
	"go-ml.dev/pkg/zorros"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const artifactsPrefix = "/api/2.0/mlflow-artifacts/artifacts"

/*
ArtifactRepository uploads run artifacts through the tracking server artifact proxy
*/
type ArtifactRepository struct {
	client *Client
	root   string
}

/*
NewArtifactRepository opens mlflow-artifacts:/<path> (the server is the tracking uri)
or mlflow-artifacts://host:port/<path> repository
*/
func NewArtifactRepository(uri string, opts tracking.Options) (*ArtifactRepository, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, zorros.Wrapf(err, "invalid artifact uri %q: %v", uri, err.Error())
	}
	base := opts.TrackingURI
	if u.Host != "" {
		scheme := "http"
		if tu, err := url.Parse(opts.TrackingURI); err == nil && tu.Scheme == "https" {
			scheme = "https"
		}
		base = scheme + "://" + u.Host
	}
	if base == "" {
		return nil, zorros.Errorf("no tracking server to serve %v", uri)
	}
	c, err := NewClient(base, opts)
	if err != nil {
		return nil, err
	}
	return &ArtifactRepository{client: c, root: strings.Trim(u.Path, "/")}, nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

func (r *ArtifactRepository) LogArtifact(ctx context.Context, localFile, artifactPath string) error {
	f, err := os.Open(localFile)
	if err != nil {
		return zorros.Trace(err)
	}
	defer f.Close()
	p := path.Join(r.root, artifactPath, filepath.Base(localFile))
	_, err = r.client.Do(ctx, http.MethodPut, artifactsPrefix+"/"+escapePath(p), nil, "application/octet-stream", f)
	return err
}

func (r *ArtifactRepository) ListArtifacts(ctx context.Context, p string) ([]tracking.FileInfo, error) {
	bs, err := r.client.Do(ctx, http.MethodGet, artifactsPrefix, url.Values{"path": {path.Join(r.root, p)}}, "", nil)
	if err != nil {
		return nil, err
	}
	out := struct {
		Files []struct {
			Path     string  `json:"path"`
			IsDir    bool    `json:"is_dir"`
			FileSize jsonInt `json:"file_size"`
		} `json:"files"`
	}{}
	if err = json.Unmarshal(bs, &out); err != nil {
		return nil, zorros.Wrapf(err, "invalid artifacts listing: %v", err.Error())
	}
	files := make([]tracking.FileInfo, 0, len(out.Files))
	for _, f := range out.Files {
		// the proxy lists names relative to the requested path
		files = append(files, tracking.FileInfo{
			Path:  strings.TrimPrefix(path.Join(p, path.Base(f.Path)), "/"),
			IsDir: f.IsDir,
			Size:  int64(f.FileSize),
		})
	}
	return files, nil
}
