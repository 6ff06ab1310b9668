package dvc

import (
	"go-ml.dev/pkg/zorros"
	"gopkg.in/ini.v1"
	"net/url"
	"path/filepath"
	"strings"
)

// ConfigFile is the DVC config in the repository
const ConfigFile = ".dvc/config"

// LocalConfigFile is the git-ignored config overriding ConfigFile in a working tree
const LocalConfigFile = ".dvc/config.local"

/*
remotes holds remotes urls by name and the default remote name
*/
type remotes struct {
	Default string
	URLs    map[string]string
}

func sectionName(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `'`))
}

/*
parseConfig reads remotes from the committed config and optional local overrides,
sources are ini contents or file names (missing files are ignored)
*/
func parseConfig(committed []byte, local string) (*remotes, error) {
	sources := []interface{}{}
	if local != "" {
		sources = append(sources, local)
	}
	cfg, err := ini.LooseLoad(committed, sources...)
	if err != nil {
		return nil, zorros.Wrapf(err, "invalid dvc config: %v", err.Error())
	}
	r := &remotes{URLs: map[string]string{}}
	for _, sec := range cfg.Sections() {
		name := sectionName(sec.Name())
		switch {
		case name == "core":
			if k, err := sec.GetKey("remote"); err == nil {
				r.Default = strings.TrimSpace(k.String())
			}
		case strings.HasPrefix(name, "remote "):
			rn := strings.Trim(strings.TrimSpace(strings.TrimPrefix(name, "remote ")), `"`)
			if k, err := sec.GetKey("url"); err == nil {
				r.URLs[rn] = strings.TrimSpace(k.String())
			}
		}
	}
	return r, nil
}

/*
url returns the url of the named remote or of the default one if name is empty.
Relative local remotes are resolved against the .dvc directory like DVC does.
*/
func (r *remotes) url(name, dvcDir string) (string, error) {
	if name == "" {
		name = r.Default
	}
	if name == "" {
		return "", zorros.Errorf("no default remote is configured")
	}
	u, ok := r.URLs[name]
	if !ok || u == "" {
		return "", zorros.Errorf("remote `%v` is not configured", name)
	}
	if x, err := url.Parse(u); err == nil && len(x.Scheme) > 1 {
		return strings.TrimRight(u, "/"), nil
	}
	if !filepath.IsAbs(u) {
		abs, err := filepath.Abs(filepath.Join(dvcDir, filepath.FromSlash(u)))
		if err != nil {
			return "", zorros.Trace(err)
		}
		u = abs
	}
	return strings.TrimRight(filepath.ToSlash(u), "/"), nil
}
