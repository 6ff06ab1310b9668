package fu

import (
	"go-ml.dev/pkg/iokit"
	"path/filepath"
)

/*
StagePath returns a location in the user cache where artifacts are assembled before upload.
Absolute paths are returned as is.
*/
func StagePath(s string) string {
	if filepath.IsAbs(s) {
		return s
	}
	return iokit.CacheFile(filepath.Join("go-ml", "dvcflow", s))
}
