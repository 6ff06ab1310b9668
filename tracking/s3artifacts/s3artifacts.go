/*
Package s3artifacts keeps run artifacts in an S3 compatible bucket
*/
package s3artifacts

import (
	"context"
	"go-ml.dev/pkg/dvcflow/objstore"
	"go-ml.dev/pkg/dvcflow/tracking"
	"go-ml.dev/pkg/zorros"
	"path"
	"path/filepath"
	"strings"
)

func init() {
	tracking.RegisterArtifactRepository(objstore.Scheme, func(uri string, opts tracking.Options) (tracking.ArtifactRepository, error) {
		return New(uri, opts.S3)
	})
}

/*
Repository is an artifact repository rooted at s3://bucket/prefix
*/
type Repository struct {
	storage *objstore.Storage
	bucket  string
	prefix  string
}

/*
New connects to the storage of the s3:// uri
*/
func New(uri string, cfg objstore.Config) (*Repository, error) {
	bucket, prefix, err := objstore.ParseURL(uri)
	if err != nil {
		return nil, err
	}
	s, err := objstore.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Repository{storage: s, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// Key returns object key of the artifact path
func (r *Repository) Key(artifactPath string) string {
	return strings.TrimPrefix(path.Join(r.prefix, artifactPath), "/")
}

func (r *Repository) LogArtifact(ctx context.Context, localFile, artifactPath string) error {
	key := r.Key(path.Join(artifactPath, filepath.Base(localFile)))
	if err := r.storage.PutFile(ctx, r.bucket, key, localFile); err != nil {
		return zorros.Wrapf(err, "failed to upload %v to s3://%v/%v: %v", localFile, r.bucket, key, err.Error())
	}
	return nil
}

func (r *Repository) ListArtifacts(ctx context.Context, p string) ([]tracking.FileInfo, error) {
	prefix := r.Key(p)
	if prefix != "" {
		prefix += "/"
	}
	objects, err := r.storage.ListFolderObjects(ctx, r.bucket, prefix, false)
	if err != nil {
		return nil, zorros.Trace(err)
	}
	files := make([]tracking.FileInfo, 0, len(objects))
	for _, o := range objects {
		name := strings.TrimPrefix(o.Key, prefix)
		f := tracking.FileInfo{Path: strings.TrimPrefix(path.Join(p, strings.TrimSuffix(name, "/")), "/")}
		if strings.HasSuffix(name, "/") {
			f.IsDir = true
		} else {
			f.Size = o.ContentLength
		}
		files = append(files, f)
	}
	return files, nil
}
