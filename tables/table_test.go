package tables

import (
	"context"
	"go-ml.dev/pkg/dvcflow/objstore"
	"golang.org/x/xerrors"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/fs"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"
)

const wine = `fixed acidity,volatile acidity,color,quality
7.4,0.7,red,5
7.8,0.88,red,5
11.2,0.28,white,6
`

func Test_ReadCSV(t *testing.T) {
	q, err := ReadCSV(strings.NewReader(wine), ",")
	assert.NilError(t, err)
	assert.Equal(t, q.Len(), 3)
	assert.Equal(t, q.Width(), 4)
	assert.DeepEqual(t, q.Columns(), []string{"fixed acidity", "volatile acidity", "color", "quality"})
	assert.Assert(t, q.Col("quality").Numeric())
	assert.Assert(t, !q.Col("color").Numeric())
	assert.Equal(t, floatAt(t, q.Col("volatile acidity"), 1), 0.88)
	_, err = q.Col("color").Floats()
	assert.ErrorContains(t, err, "not numeric")
	assert.Equal(t, floatAt(t, q.Col("quality"), 2), 6.0)
	assert.Assert(t, q.Col("alcohol") == nil)
}

func Test_ReadCSVSeparator(t *testing.T) {
	q, err := ReadCSV(strings.NewReader("a;b\n1;2\n3;4\n"), ";")
	assert.NilError(t, err)
	assert.Equal(t, floatAt(t, q.Col("b"), 1), 4.0)

	_, err = ReadCSV(strings.NewReader("a;b\n1;2\n"), ";;")
	assert.ErrorContains(t, err, "single character")
}

func Test_ReadCSVMalformed(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,b\n1,2\n3\n"), ",")
	assert.Assert(t, err != nil)
	_, err = ReadCSV(strings.NewReader("a,a\n1,2\n"), ",")
	assert.ErrorContains(t, err, "duplicate column")
	_, err = ReadCSV(strings.NewReader(""), ",")
	assert.ErrorContains(t, err, "header expected")
}

func Test_Load(t *testing.T) {
	dir := fs.NewDir(t, "tables", fs.WithFile("wine.csv", wine))
	defer dir.Remove()

	q, err := Load(context.Background(), dir.Join("wine.csv"), ",")
	assert.NilError(t, err)
	assert.Equal(t, q.Len(), 3)

	q, err = Load(context.Background(), "file://"+dir.Join("wine.csv"), ",")
	assert.NilError(t, err)
	assert.Equal(t, q.Width(), 4)

	_, err = Load(context.Background(), dir.Join("missing.csv"), ",")
	var le *LoadError
	assert.Assert(t, xerrors.As(err, &le))
	assert.Equal(t, le.URL, dir.Join("missing.csv"))

	_, err = Load(context.Background(), "gs://bucket/wine.csv", ",")
	assert.Assert(t, xerrors.As(err, &le))
	assert.ErrorContains(t, err, "unsupported url scheme")
}

func Test_LoadObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/dvc/ab/cdef" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(wine)))
		w.Header().Set("Last-Modified", time.Unix(1600000000, 0).UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write([]byte(wine))
		}
	}))
	defer srv.Close()
	cfg := objstore.Config{Endpoint: srv.URL, AccessKey: "a", SecretKey: "b", Region: "us-east-1"}

	q, err := Load(context.Background(), "s3://dvc/ab/cdef", ",", WithObjectStorage(cfg))
	assert.NilError(t, err)
	assert.Equal(t, q.Len(), 3)

	_, err = Load(context.Background(), "s3://dvc/ab/0000", ",", WithObjectStorage(cfg))
	var le *LoadError
	assert.Assert(t, xerrors.As(err, &le))
	assert.Equal(t, le.URL, "s3://dvc/ab/0000")
	assert.ErrorContains(t, err, "does not exist")
}

func Test_ExceptOnly(t *testing.T) {
	q := readString(t, wine)
	x, err := q.Except("quality")
	assert.NilError(t, err)
	assert.DeepEqual(t, x.Columns(), []string{"fixed acidity", "volatile acidity", "color"})
	assert.Equal(t, x.Len(), 3)
	y, err := q.Only("quality")
	assert.NilError(t, err)
	assert.DeepEqual(t, y.Columns(), []string{"quality"})
	_, err = q.Except("alcohol")
	assert.ErrorContains(t, err, "alcohol")
	_, err = q.Only("quality", "quality")
	assert.ErrorContains(t, err, "duplicate")
}

func Test_Matrix(t *testing.T) {
	q := readString(t, wine)
	_, err := q.Matrix()
	assert.ErrorContains(t, err, "`color` is not numeric")
	x, err := q.Except("color")
	assert.NilError(t, err)
	m, err := x.Matrix()
	assert.NilError(t, err)
	r, c := m.Dims()
	assert.Equal(t, r, 3)
	assert.Equal(t, c, 3)
	assert.Equal(t, m.At(2, 0), 11.2)
	assert.Equal(t, m.At(0, 2), 5.0)
}

func Test_SplitSizes(t *testing.T) {
	for _, n := range []int{4, 5, 7, 10, 99, 1000, 1599} {
		train, test, err := SplitIndices(n, 40, DefaultTestSize)
		assert.NilError(t, err)
		assert.Equal(t, len(train)+len(test), n)
		assert.Equal(t, len(test), (n+3)/4)
		seen := map[int]bool{}
		for _, i := range append(append([]int{}, train...), test...) {
			assert.Assert(t, !seen[i], "row %d is in both subsets", i)
			assert.Assert(t, i >= 0 && i < n)
			seen[i] = true
		}
		assert.Assert(t, cmp.Len(seen, n))
	}
}

func Test_SplitReproducible(t *testing.T) {
	a, b, err := SplitIndices(100, 40, DefaultTestSize)
	assert.NilError(t, err)
	c, d, err := SplitIndices(100, 40, DefaultTestSize)
	assert.NilError(t, err)
	assert.DeepEqual(t, a, c)
	assert.DeepEqual(t, b, d)
	e, _, err := SplitIndices(100, 41, DefaultTestSize)
	assert.NilError(t, err)
	assert.Assert(t, !reflect.DeepEqual(a, e))
}

func Test_SplitInvalid(t *testing.T) {
	_, _, err := SplitIndices(1, 40, DefaultTestSize)
	assert.ErrorContains(t, err, "can't split")
	_, _, err = SplitIndices(10, 40, 1)
	assert.ErrorContains(t, err, "test size")
}

func Test_TrainTestSplit(t *testing.T) {
	q := readString(t, "id,v\n"+rowsOf(20))
	train, test, err := q.TrainTestSplit(40, DefaultTestSize)
	assert.NilError(t, err)
	assert.Equal(t, train.Len(), 15)
	assert.Equal(t, test.Len(), 5)
	ids := map[float64]bool{}
	for _, part := range []*Table{train, test} {
		for i := 0; i < part.Len(); i++ {
			id := floatAt(t, part.Col("id"), i)
			assert.Assert(t, !ids[id])
			ids[id] = true
			assert.Equal(t, floatAt(t, part.Col("v"), i), id*2)
		}
	}
	assert.Assert(t, cmp.Len(ids, 20))
}

func rowsOf(n int) string {
	b := &strings.Builder{}
	for i := 0; i < n; i++ {
		b.WriteString(strconv.Itoa(i) + "," + strconv.Itoa(2*i) + "\n")
	}
	return b.String()
}

func readString(t *testing.T, s string) *Table {
	q, err := ReadCSV(strings.NewReader(s), ",")
	assert.NilError(t, err)
	return q
}

func floatAt(t *testing.T, c *Column, i int) float64 {
	v, err := c.Floats()
	assert.NilError(t, err)
	return v[i]
}
