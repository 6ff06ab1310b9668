package tracking

import (
	"context"
	"go-ml.dev/pkg/iokit"
	"go-ml.dev/pkg/zorros"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
)

type localRepository struct {
	root string
}

func newLocalRepository(uri string, _ Options) (ArtifactRepository, error) {
	root := LocalPath(uri)
	if root == "" {
		return nil, zorros.Errorf("empty artifact location")
	}
	return &localRepository{root: root}, nil
}

/*
LocalPath converts file:// uri to a filesystem path, plain paths are returned as is
*/
func LocalPath(uri string) string {
	if strings.HasPrefix(uri, "file://") {
		return filepath.FromSlash(strings.TrimPrefix(uri, "file://"))
	}
	return strings.TrimPrefix(uri, "file:")
}

func (r *localRepository) LogArtifact(_ context.Context, localFile, artifactPath string) (err error) {
	dir := filepath.Join(r.root, filepath.FromSlash(artifactPath))
	if err = os.MkdirAll(dir, 0755); err != nil {
		return zorros.Trace(err)
	}
	rd, err := os.Open(localFile)
	if err != nil {
		return zorros.Trace(err)
	}
	defer rd.Close()
	wh, err := iokit.File(filepath.Join(dir, filepath.Base(localFile))).Create()
	if err != nil {
		return zorros.Trace(err)
	}
	defer wh.End()
	if _, err = io.Copy(wh, rd); err != nil {
		return zorros.Trace(err)
	}
	return wh.Commit()
}

func (r *localRepository) ListArtifacts(_ context.Context, path string) ([]FileInfo, error) {
	infos, err := ioutil.ReadDir(filepath.Join(r.root, filepath.FromSlash(path)))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, zorros.Trace(err)
	}
	files := make([]FileInfo, 0, len(infos))
	for _, fi := range infos {
		f := FileInfo{Path: strings.TrimPrefix(path+"/"+fi.Name(), "/"), IsDir: fi.IsDir()}
		if !fi.IsDir() {
			f.Size = fi.Size()
		}
		files = append(files, f)
	}
	return files, nil
}
