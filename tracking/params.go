package tracking

import "strconv"

/*
Param is a named string value logged once per run
*/
type Param struct {
	Key   string
	Value string
}

/*
RunParams is the enumerated set of parameters a training run records
*/
type RunParams struct {
	DataURL      string
	Revision     string
	InputRows    int
	InputColumns int
	Alpha        float64
	L1Ratio      float64
}

// Data returns dataset provenance parameters
func (p RunParams) Data() []Param {
	return []Param{
		{"data_url", p.DataURL},
		{"version", p.Revision},
		{"input_rows", strconv.Itoa(p.InputRows)},
		{"input_columns", strconv.Itoa(p.InputColumns)},
	}
}

// Model returns hyper-parameters
func (p RunParams) Model() []Param {
	return []Param{
		{"alpha", FormatFloat(p.Alpha)},
		{"l1_ratio", FormatFloat(p.L1Ratio)},
	}
}

// FormatFloat formats parameter value in the shortest exact form
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
