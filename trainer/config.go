package trainer

import (
	"github.com/spf13/viper"
	"go-ml.dev/pkg/dvcflow/objstore"
	"go-ml.dev/pkg/dvcflow/tables"
	"go-ml.dev/pkg/dvcflow/tracking"
	"go-ml.dev/pkg/zorros"
	"strings"
)

// ConfigName is the name of optional config file looked up in the working directory
const ConfigName = "dvcflow"

// EnvPrefix prefixes environment variables overriding config keys
const EnvPrefix = "DVCFLOW"

/*
DataConfig addresses the dataset and tells how to split it
*/
type DataConfig struct {
	Path     string  // file path in the data repository
	Repo     string  // data repository
	Rev      string  // dataset version
	Sep      string  // CSV field separator
	Target   string  // label column
	Seed     uint64  // split seed
	TestSize float64 // share of test rows
}

/*
TrackingConfig tells where runs are recorded
*/
type TrackingConfig struct {
	URI          string
	Experiment   string
	ArtifactRoot string
	Token        string
	Username     string
	Password     string
}

/*
Config is the pipeline configuration
*/
type Config struct {
	Data      DataConfig
	ModelSeed uint64 // elastic net random seed
	OutputDir string // existing directory where column lists are written
	Tracking  TrackingConfig
	S3        objstore.Config
	Verbose   func(string) // print function, optional
}

var defaults = map[string]interface{}{
	"data.path":              "data/wine-quality.csv",
	"data.repo":              ".",
	"data.rev":               "v2",
	"data.sep":               ",",
	"data.target":            "quality",
	"data.seed":              40,
	"data.test_size":         tables.DefaultTestSize,
	"model.seed":             42,
	"output.dir":             "output",
	"tracking.uri":           "sqlite:///mlruns.db",
	"tracking.experiment":    "dvc-mlflow-demo",
	"tracking.artifact_root": "./mlruns",
	"s3.secure":              true,
}

// conventional variables of MLflow and AWS tooling
var envs = map[string][]string{
	"tracking.uri":        {"MLFLOW_TRACKING_URI"},
	"tracking.experiment": {"MLFLOW_EXPERIMENT_NAME"},
	"tracking.token":      {"MLFLOW_TRACKING_TOKEN"},
	"tracking.username":   {"MLFLOW_TRACKING_USERNAME"},
	"tracking.password":   {"MLFLOW_TRACKING_PASSWORD"},
	"s3.endpoint":         {"MLFLOW_S3_ENDPOINT_URL", "AWS_ENDPOINT_URL"},
	"s3.access_key":       {"AWS_ACCESS_KEY_ID"},
	"s3.secret_key":       {"AWS_SECRET_ACCESS_KEY"},
	"s3.region":           {"AWS_REGION", "AWS_DEFAULT_REGION"},
}

/*
NewViper returns viper with pipeline defaults and environment bindings,
DVCFLOW_* variables take precedence over the conventional ones
*/
func NewViper() *viper.Viper {
	v := viper.New()
	for k, x := range defaults {
		v.SetDefault(k, x)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, names := range envs {
		own := EnvPrefix + "_" + strings.ToUpper(strings.Replace(k, ".", "_", -1))
		v.BindEnv(append([]string{k, own}, names...)...)
	}
	v.SetConfigName(ConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	return v
}

/*
LoadConfig reads the optional config file into v and builds Config
*/
func LoadConfig(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, zorros.Wrapf(err, "failed to read config: %v", err.Error())
		}
	}
	return ConfigOf(v)
}

/*
ConfigOf builds Config from values already in v
*/
func ConfigOf(v *viper.Viper) (Config, error) {
	cfg := Config{
		Data: DataConfig{
			Path:     v.GetString("data.path"),
			Repo:     v.GetString("data.repo"),
			Rev:      v.GetString("data.rev"),
			Sep:      v.GetString("data.sep"),
			Target:   v.GetString("data.target"),
			Seed:     v.GetUint64("data.seed"),
			TestSize: v.GetFloat64("data.test_size"),
		},
		ModelSeed: v.GetUint64("model.seed"),
		OutputDir: v.GetString("output.dir"),
		Tracking: TrackingConfig{
			URI:          v.GetString("tracking.uri"),
			Experiment:   v.GetString("tracking.experiment"),
			ArtifactRoot: v.GetString("tracking.artifact_root"),
			Token:        v.GetString("tracking.token"),
			Username:     v.GetString("tracking.username"),
			Password:     v.GetString("tracking.password"),
		},
		S3: objstore.Config{
			Endpoint:  v.GetString("s3.endpoint"),
			AccessKey: v.GetString("s3.access_key"),
			SecretKey: v.GetString("s3.secret_key"),
			Region:    v.GetString("s3.region"),
			Secure:    v.GetBool("s3.secure"),
		},
	}
	return cfg, cfg.Validate()
}

/*
Validate checks values a run can't start without
*/
func (c Config) Validate() error {
	switch {
	case c.Data.Path == "":
		return zorros.Errorf("data.path is not set")
	case c.Data.Target == "":
		return zorros.Errorf("data.target is not set")
	case c.Data.TestSize <= 0 || c.Data.TestSize >= 1:
		return zorros.Errorf("data.test_size must be in (0,1), got %v", c.Data.TestSize)
	case c.Tracking.URI == "":
		return zorros.Errorf("tracking.uri is not set")
	case c.Tracking.Experiment == "":
		return zorros.Errorf("tracking.experiment is not set")
	}
	return nil
}

func (c Config) trackingOptions() tracking.Options {
	return tracking.Options{
		ArtifactRoot: c.Tracking.ArtifactRoot,
		Token:        c.Tracking.Token,
		Username:     c.Tracking.Username,
		Password:     c.Tracking.Password,
		S3:           c.S3,
	}
}

func (c Config) verbose(s string) {
	if c.Verbose != nil {
		c.Verbose(s)
	}
}
