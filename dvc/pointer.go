package dvc

import (
	"go-ml.dev/pkg/zorros"
	"gopkg.in/yaml.v3"
	"path"
	"strings"
)

// LockFile is the pipeline lock file at the repository root
const LockFile = "dvc.lock"

// PointerExt is the extension of files tracking single outputs
const PointerExt = ".dvc"

/*
Output is a data file tracked by DVC
*/
type Output struct {
	Path string `yaml:"path"`
	MD5  string `yaml:"md5"`
	Size int64  `yaml:"size"`
	// Hash is set to md5 by DVC 3 which keeps files under files/md5 of the cache
	Hash string `yaml:"hash"`
}

// Legacy reports whether the output uses the DVC 2 cache layout
func (o Output) Legacy() bool { return o.Hash == "" }

// Dir reports whether the output is a tracked directory
func (o Output) Dir() bool { return strings.HasSuffix(o.MD5, ".dir") }

/*
CachePath returns the location of the output content relative to a remote
*/
func (o Output) CachePath() string {
	p := o.MD5[:2] + "/" + o.MD5[2:]
	if o.Legacy() {
		return p
	}
	return "files/" + o.Hash + "/" + p
}

func (o Output) validate() error {
	if o.Dir() {
		return zorros.Errorf("%v is a tracked directory", o.Path)
	}
	if len(o.MD5) != 32 || strings.Trim(strings.ToLower(o.MD5), "0123456789abcdef") != "" {
		return zorros.Errorf("invalid md5 %q of %v", o.MD5, o.Path)
	}
	if o.Hash != "" && o.Hash != "md5" {
		return zorros.Errorf("unsupported hash %q of %v", o.Hash, o.Path)
	}
	return nil
}

type pointerFile struct {
	Outs []Output `yaml:"outs"`
}

type lockFile struct {
	Schema string `yaml:"schema"`
	Stages map[string]struct {
		Outs []Output `yaml:"outs"`
	} `yaml:"stages"`
}

/*
findInPointer looks up the output of a .dvc file, out paths are relative to the file directory
*/
func findInPointer(content []byte, file string) (*Output, error) {
	p := pointerFile{}
	if err := yaml.Unmarshal(content, &p); err != nil {
		return nil, zorros.Wrapf(err, "invalid %v: %v", file, err.Error())
	}
	dir := path.Dir(file)
	want := strings.TrimSuffix(file, PointerExt)
	for _, o := range p.Outs {
		if path.Join(dir, o.Path) == want {
			o.Path = want
			return &o, nil
		}
	}
	return nil, zorros.Errorf("%v does not track %v", file, want)
}

/*
findInLock looks up a stage output in dvc.lock, out paths are relative to the repository root
*/
func findInLock(content []byte, file string) (*Output, error) {
	l := lockFile{}
	if err := yaml.Unmarshal(content, &l); err != nil {
		return nil, zorros.Wrapf(err, "invalid %v: %v", LockFile, err.Error())
	}
	for _, s := range l.Stages {
		for _, o := range s.Outs {
			if path.Clean(o.Path) == file {
				o.Path = file
				return &o, nil
			}
		}
	}
	return nil, nil
}
