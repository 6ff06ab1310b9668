package tracking

import (
	"encoding/csv"
	"go-ml.dev/pkg/zorros"
	"os"
	"path/filepath"
)

/*
WriteColumnList writes names as a header-less single-column CSV file into dir,
the directory must already exist
*/
func WriteColumnList(dir, name string, names []string) (string, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return "", fail("write "+name, err)
	}
	if !fi.IsDir() {
		return "", fail("write "+name, zorros.Errorf("%v is not a directory", dir))
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fail("write "+name, err)
	}
	w := csv.NewWriter(f)
	for _, n := range names {
		if err = w.Write([]string{n}); err != nil {
			break
		}
	}
	w.Flush()
	if err == nil {
		err = w.Error()
	}
	if e := f.Close(); err == nil {
		err = e
	}
	if err != nil {
		return "", fail("write "+name, err)
	}
	return path, nil
}
