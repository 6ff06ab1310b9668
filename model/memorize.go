package model

import (
	"encoding/json"
	"github.com/ulikunitz/xz"
	"go-ml.dev/pkg/iokit"
	"go-ml.dev/pkg/zorros"
	"gopkg.in/yaml.v3"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	// DescriptorFile describes the memorized model
	DescriptorFile = "MLmodel"
	// PayloadFile is xz compressed JSON of the model
	PayloadFile = "model.json.xz"
)

/*
Decoder restores a model of some flavor from its JSON payload
*/
type Decoder func(io.Reader) (Model, error)

var flavors = struct {
	sync.RWMutex
	m map[string]Decoder
}{m: map[string]Decoder{}}

/*
RegisterFlavor makes a model flavor restorable, it's called from init of model implementations
*/
func RegisterFlavor(flavor string, decode Decoder) {
	flavors.Lock()
	defer flavors.Unlock()
	if _, exists := flavors.m[flavor]; exists {
		panic(zorros.Panic(zorros.Errorf("flavor `%v` is already registered", flavor)))
	}
	flavors.m[flavor] = decode
}

// Flavors returns registered flavor identifiers
func Flavors() []string {
	flavors.RLock()
	defer flavors.RUnlock()
	r := make([]string, 0, len(flavors.m))
	for k := range flavors.m {
		r = append(r, k)
	}
	sort.Strings(r)
	return r
}

/*
Meta is provenance written into the model descriptor
*/
type Meta struct {
	RunID        string
	ArtifactPath string
	Created      time.Time
}

type flavorConf struct {
	Data string `yaml:"data"`
}

type descriptor struct {
	ArtifactPath   string                `yaml:"artifact_path,omitempty"`
	Flavors        map[string]flavorConf `yaml:"flavors"`
	RunID          string                `yaml:"run_id,omitempty"`
	UtcTimeCreated string                `yaml:"utc_time_created"`
	Features       []string              `yaml:"features"`
}

/*
Memorize writes the model descriptor and the compressed model payload into dir
*/
func Memorize(dir string, m Model, meta Meta) (err error) {
	if err = os.MkdirAll(dir, 0755); err != nil {
		return zorros.Trace(err)
	}
	created := meta.Created
	if created.IsZero() {
		created = time.Now()
	}
	d := descriptor{
		ArtifactPath:   meta.ArtifactPath,
		Flavors:        map[string]flavorConf{m.Flavor(): {Data: PayloadFile}},
		RunID:          meta.RunID,
		UtcTimeCreated: created.UTC().Format("2006-01-02 15:04:05.000000"),
		Features:       m.Features(),
	}
	bs, err := yaml.Marshal(&d)
	if err != nil {
		return zorros.Trace(err)
	}
	if err = ioutil.WriteFile(filepath.Join(dir, DescriptorFile), bs, 0644); err != nil {
		return zorros.Trace(err)
	}

	wh, err := iokit.File(filepath.Join(dir, PayloadFile)).Create()
	if err != nil {
		return zorros.Trace(err)
	}
	defer wh.End()
	xw, err := xz.NewWriter(wh)
	if err != nil {
		return zorros.Trace(err)
	}
	if err = json.NewEncoder(xw).Encode(m); err != nil {
		return zorros.Wrapf(err, "failed to encode model: %v", err.Error())
	}
	if err = xw.Close(); err != nil {
		return zorros.Trace(err)
	}
	return wh.Commit()
}

/*
Restore reads a memorized model back from dir
*/
func Restore(dir string) (Model, error) {
	bs, err := ioutil.ReadFile(filepath.Join(dir, DescriptorFile))
	if err != nil {
		return nil, zorros.Trace(err)
	}
	d := descriptor{}
	if err = yaml.Unmarshal(bs, &d); err != nil {
		return nil, zorros.Wrapf(err, "invalid model descriptor: %v", err.Error())
	}
	flavors.RLock()
	defer flavors.RUnlock()
	for name, conf := range d.Flavors {
		decode, ok := flavors.m[name]
		if !ok {
			continue
		}
		f, err := os.Open(filepath.Join(dir, conf.Data))
		if err != nil {
			return nil, zorros.Trace(err)
		}
		defer f.Close()
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, zorros.Trace(err)
		}
		return decode(xr)
	}
	return nil, zorros.Errorf("no registered flavor to restore model from %v", dir)
}
