/*
Package tables implements the in-memory tabular dataset the pipeline trains on
*/
package tables

import (
	"go-ml.dev/pkg/zorros"
	"gonum.org/v1/gonum/mat"
	"strconv"
	"strings"
)

/*
Column is a named column of cells. A cell is a float64 when every cell of the column
parses as a number and a string otherwise.
*/
type Column struct {
	raw     []string
	floats  []float64
	numeric bool
}

func newColumn(raw []string) *Column {
	c := &Column{raw: raw, numeric: true}
	floats := make([]float64, len(raw))
	for i, s := range raw {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			c.numeric = false
			return c
		}
		floats[i] = v
	}
	c.floats = floats
	return c
}

// Numeric reports whether all cells are numbers
func (c *Column) Numeric() bool { return c.numeric }

// Len is the count of cells
func (c *Column) Len() int { return len(c.raw) }

// Floats returns a copy of the column values
func (c *Column) Floats() ([]float64, error) {
	if !c.numeric {
		return nil, zorros.Errorf("column is not numeric")
	}
	return append([]float64(nil), c.floats...), nil
}

func (c *Column) take(idx []int) *Column {
	q := &Column{raw: make([]string, len(idx)), numeric: c.numeric}
	if c.numeric {
		q.floats = make([]float64, len(idx))
	}
	for j, i := range idx {
		q.raw[j] = c.raw[i]
		if c.numeric {
			q.floats[j] = c.floats[i]
		}
	}
	return q
}

/*
Table is an ordered sequence of rows sharing one column schema
*/
type Table struct {
	names   []string
	columns []*Column
	length  int
}

/*
New creates a table from column names and rows of raw cells
*/
func New(names []string, rows [][]string) (*Table, error) {
	seen := map[string]bool{}
	for i, n := range names {
		if n == "" {
			return nil, zorros.Errorf("empty name of column %d", i)
		}
		if seen[n] {
			return nil, zorros.Errorf("duplicate column `%v`", n)
		}
		seen[n] = true
	}
	raw := make([][]string, len(names))
	for j := range raw {
		raw[j] = make([]string, len(rows))
	}
	for i, r := range rows {
		if len(r) != len(names) {
			return nil, zorros.Errorf("row %d has %d fields, expected %d", i+1, len(r), len(names))
		}
		for j, s := range r {
			raw[j][i] = s
		}
	}
	t := &Table{names: append([]string(nil), names...), length: len(rows)}
	for _, r := range raw {
		t.columns = append(t.columns, newColumn(r))
	}
	return t, nil
}

// Len returns count of rows
func (t *Table) Len() int { return t.length }

// Width returns count of columns
func (t *Table) Width() int { return len(t.names) }

// Columns returns names of columns in order
func (t *Table) Columns() []string { return append([]string(nil), t.names...) }

func (t *Table) index(name string) int {
	for i, n := range t.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Col returns column by name or nil if there is no such column
func (t *Table) Col(name string) *Column {
	if i := t.index(name); i >= 0 {
		return t.columns[i]
	}
	return nil
}

/*
Except returns a new table without the named columns, every name must exist
*/
func (t *Table) Except(names ...string) (*Table, error) {
	drop := map[string]bool{}
	for _, n := range names {
		if t.index(n) < 0 {
			return nil, zorros.Errorf("table does not have column `%v`", n)
		}
		drop[n] = true
	}
	q := &Table{length: t.length}
	for j, n := range t.names {
		if !drop[n] {
			q.names = append(q.names, n)
			q.columns = append(q.columns, t.columns[j])
		}
	}
	return q, nil
}

/*
Only returns a new table with the named columns in the given order
*/
func (t *Table) Only(names ...string) (*Table, error) {
	q := &Table{length: t.length}
	for _, n := range names {
		j := t.index(n)
		if j < 0 {
			return nil, zorros.Errorf("table does not have column `%v`", n)
		}
		if q.index(n) >= 0 {
			return nil, zorros.Errorf("duplicate column `%v`", n)
		}
		q.names = append(q.names, n)
		q.columns = append(q.columns, t.columns[j])
	}
	return q, nil
}

// Take returns a new table with rows selected by index in the given order
func (t *Table) Take(idx []int) *Table {
	q := &Table{names: t.names, length: len(idx)}
	for _, c := range t.columns {
		q.columns = append(q.columns, c.take(idx))
	}
	return q
}

/*
Matrix returns the table as a rows x columns dense matrix, all columns must be numeric
*/
func (t *Table) Matrix() (*mat.Dense, error) {
	if t.length == 0 || len(t.names) == 0 {
		return nil, zorros.Errorf("table is empty")
	}
	for j, c := range t.columns {
		if !c.numeric {
			return nil, zorros.Errorf("column `%v` is not numeric", t.names[j])
		}
	}
	m := mat.NewDense(t.length, len(t.names), nil)
	for j, c := range t.columns {
		m.SetCol(j, c.floats)
	}
	return m, nil
}
