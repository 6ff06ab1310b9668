package tables

import (
	"context"
	"encoding/csv"
	"go-ml.dev/pkg/dvcflow/objstore"
	"go-ml.dev/pkg/iokit"
	"go-ml.dev/pkg/zorros"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

type options struct {
	s3 *objstore.Config
}

/*
Option tunes Load
*/
type Option func(*options)

/*
WithObjectStorage sets credentials used to fetch s3:// urls
*/
func WithObjectStorage(cfg objstore.Config) Option {
	return func(o *options) { o.s3 = &cfg }
}

/*
ReadCSV reads a table with header from CSV stream with the given field separator
*/
func ReadCSV(rd io.Reader, sep string) (*Table, error) {
	r := csv.NewReader(rd)
	if sep != "" {
		c, n := utf8.DecodeRuneInString(sep)
		if n != len(sep) {
			return nil, zorros.Errorf("separator must be a single character, got %q", sep)
		}
		r.Comma = c
	}
	r.FieldsPerRecord = 0
	header, err := r.Read()
	if err == io.EOF {
		return nil, zorros.Errorf("empty CSV, header expected")
	}
	if err != nil {
		return nil, zorros.Trace(err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, zorros.Trace(err)
	}
	return New(header, rows)
}

/*
Load fetches a CSV dataset from a local path, file://, http(s):// or s3:// url
*/
func Load(ctx context.Context, url string, sep string, opts ...Option) (*Table, error) {
	o := &options{}
	for _, f := range opts {
		f(o)
	}
	rd, err := open(ctx, url, o)
	if err != nil {
		return nil, &LoadError{URL: url, Err: err}
	}
	defer rd.Close()
	t, err := ReadCSV(rd, sep)
	if err != nil {
		return nil, &LoadError{URL: url, Err: err}
	}
	return t, nil
}

func open(ctx context.Context, url string, o *options) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return iokit.Url(url).Open()
	case strings.HasPrefix(url, objstore.Scheme+"://"):
		cfg := objstore.Config{}
		if o.s3 != nil {
			cfg = *o.s3
		}
		s, err := objstore.New(cfg)
		if err != nil {
			return nil, err
		}
		return s.Open(ctx, url)
	case strings.HasPrefix(url, "file://"):
		return os.Open(strings.TrimPrefix(url, "file://"))
	case strings.Contains(url, "://"):
		return nil, zorros.Errorf("unsupported url scheme in %q", url)
	default:
		return os.Open(url)
	}
}
