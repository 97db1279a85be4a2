package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. LATIN_WORKERS=4.
const EnvPrefix = "LATIN"

// Config holds the parameters of one batch run (registration, extraction and
// classification). Every field is optional; the Get* methods supply the
// defaults used by the original experiments.
type Config struct {
	// Registration params
	CropRadius                *float64 `mapstructure:"crop_radius" json:"crop_radius,omitempty"`
	NoseLandmarkIndex         *int     `mapstructure:"nose_landmark_index" json:"nose_landmark_index,omitempty"`
	MaxCorrespondenceDistance *float64 `mapstructure:"max_correspondence_distance" json:"max_correspondence_distance,omitempty"`
	ICPMaxIterations          *int     `mapstructure:"icp_max_iterations" json:"icp_max_iterations,omitempty"`
	ICPRelativeFitness        *float64 `mapstructure:"icp_relative_fitness" json:"icp_relative_fitness,omitempty"`
	ICPRelativeRMSE           *float64 `mapstructure:"icp_relative_rmse" json:"icp_relative_rmse,omitempty"`

	// Batch params
	Workers  *int    `mapstructure:"workers" json:"workers,omitempty"`
	CloudExt *string `mapstructure:"cloud_ext" json:"cloud_ext,omitempty"`

	// Extraction params
	ToolPath    *string `mapstructure:"tool_path" json:"tool_path,omitempty"`
	ToolTimeout *string `mapstructure:"tool_timeout" json:"tool_timeout,omitempty"` // duration string like "60s"
	Moment      *string `mapstructure:"moment" json:"moment,omitempty"`
	Cut         *string `mapstructure:"cut" json:"cut,omitempty"`

	// Classification params
	Classifiers []string `mapstructure:"classifiers" json:"classifiers,omitempty"`
	SVMC        *float64 `mapstructure:"svm_c" json:"svm_c,omitempty"`
	SVMGamma    *float64 `mapstructure:"svm_gamma" json:"svm_gamma,omitempty"`

	// Logging
	LogFormat *string `mapstructure:"log_format" json:"log_format,omitempty"`
}

// keys lists every config key, used to bind environment overrides.
var keys = []string{
	"crop_radius", "nose_landmark_index", "max_correspondence_distance",
	"icp_max_iterations", "icp_relative_fitness", "icp_relative_rmse",
	"workers", "cloud_ext", "tool_path", "tool_timeout", "moment", "cut",
	"classifiers", "svm_c", "svm_gamma", "log_format",
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyConfig returns a Config with all fields unset.
func EmptyConfig() *Config {
	return &Config{}
}

// DefaultConfig returns a Config with every field set to its default.
func DefaultConfig() *Config {
	return &Config{
		CropRadius:                ptrFloat64(40),
		NoseLandmarkIndex:         ptrInt(13),
		MaxCorrespondenceDistance: ptrFloat64(100),
		ICPMaxIterations:          ptrInt(100),
		ICPRelativeFitness:        ptrFloat64(1e-4),
		ICPRelativeRMSE:           ptrFloat64(1e-4),
		Workers:                   ptrInt(1),
		CloudExt:                  ptrString("pcd"),
		ToolPath:                  ptrString("../bin/mcalc"),
		ToolTimeout:               ptrString("60s"),
		Moment:                    ptrString(""),
		Cut:                       ptrString("w"),
		SVMC:                      ptrFloat64(8),
		SVMGamma:                  ptrFloat64(0.125),
		LogFormat:                 ptrString("console"),
	}
}

// LoadConfig loads a Config from a JSON, YAML or TOML file. Environment
// variables prefixed with LATIN_ override file values. Fields omitted from
// the file keep their defaults, so partial configs are safe.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	switch ext := filepath.Ext(cleanPath); ext {
	case ".json", ".yaml", ".yml", ".toml":
	default:
		return nil, errors.Newf("config file must be .json, .yaml or .toml, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat config file")
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, errors.Newf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	v := newViper()
	v.SetConfigFile(cleanPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return decode(v)
}

// LoadFromEnv builds a Config from LATIN_* environment variables only.
func LoadFromEnv() (*Config, error) {
	return decode(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := EmptyConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.CropRadius != nil && *c.CropRadius <= 0 {
		return errors.Newf("crop_radius must be positive, got %f", *c.CropRadius)
	}
	if c.NoseLandmarkIndex != nil && *c.NoseLandmarkIndex < 0 {
		return errors.Newf("nose_landmark_index must be non-negative, got %d", *c.NoseLandmarkIndex)
	}
	if c.MaxCorrespondenceDistance != nil && *c.MaxCorrespondenceDistance <= 0 {
		return errors.Newf("max_correspondence_distance must be positive, got %f", *c.MaxCorrespondenceDistance)
	}
	if c.ICPMaxIterations != nil && *c.ICPMaxIterations < 1 {
		return errors.Newf("icp_max_iterations must be at least 1, got %d", *c.ICPMaxIterations)
	}
	if c.ICPRelativeFitness != nil && *c.ICPRelativeFitness < 0 {
		return errors.Newf("icp_relative_fitness must be non-negative, got %g", *c.ICPRelativeFitness)
	}
	if c.ICPRelativeRMSE != nil && *c.ICPRelativeRMSE < 0 {
		return errors.Newf("icp_relative_rmse must be non-negative, got %g", *c.ICPRelativeRMSE)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return errors.Newf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.CloudExt != nil && *c.CloudExt != "pcd" && *c.CloudExt != "xyz" {
		return errors.Newf("cloud_ext must be pcd or xyz, got %q", *c.CloudExt)
	}
	if c.ToolTimeout != nil && *c.ToolTimeout != "" {
		d, err := time.ParseDuration(*c.ToolTimeout)
		if err != nil {
			return errors.Wrapf(err, "invalid tool_timeout '%s'", *c.ToolTimeout)
		}
		if d <= 0 {
			return errors.Newf("tool_timeout must be positive, got %s", d)
		}
	}
	if c.SVMC != nil && *c.SVMC <= 0 {
		return errors.Newf("svm_c must be positive, got %f", *c.SVMC)
	}
	if c.SVMGamma != nil && *c.SVMGamma <= 0 {
		return errors.Newf("svm_gamma must be positive, got %f", *c.SVMGamma)
	}
	if c.LogFormat != nil && *c.LogFormat != "console" && *c.LogFormat != "json" {
		return errors.Newf("log_format must be console or json, got %q", *c.LogFormat)
	}
	return nil
}

// GetCropRadius returns the crop_radius value or the default.
func (c *Config) GetCropRadius() float64 {
	if c.CropRadius == nil {
		return 40 // default
	}
	return *c.CropRadius
}

// GetNoseLandmarkIndex returns the nose_landmark_index value or the default.
func (c *Config) GetNoseLandmarkIndex() int {
	if c.NoseLandmarkIndex == nil {
		return 13 // default
	}
	return *c.NoseLandmarkIndex
}

// GetMaxCorrespondenceDistance returns the max_correspondence_distance value or the default.
func (c *Config) GetMaxCorrespondenceDistance() float64 {
	if c.MaxCorrespondenceDistance == nil {
		return 100 // default
	}
	return *c.MaxCorrespondenceDistance
}

// GetICPMaxIterations returns the icp_max_iterations value or the default.
func (c *Config) GetICPMaxIterations() int {
	if c.ICPMaxIterations == nil {
		return 100 // default
	}
	return *c.ICPMaxIterations
}

// GetICPRelativeFitness returns the icp_relative_fitness value or the default.
func (c *Config) GetICPRelativeFitness() float64 {
	if c.ICPRelativeFitness == nil {
		return 1e-4 // default
	}
	return *c.ICPRelativeFitness
}

// GetICPRelativeRMSE returns the icp_relative_rmse value or the default.
func (c *Config) GetICPRelativeRMSE() float64 {
	if c.ICPRelativeRMSE == nil {
		return 1e-4 // default
	}
	return *c.ICPRelativeRMSE
}

// GetWorkers returns the workers value or the default.
func (c *Config) GetWorkers() int {
	if c.Workers == nil {
		return 1 // default
	}
	return *c.Workers
}

// GetCloudExt returns the cloud_ext value or the default.
func (c *Config) GetCloudExt() string {
	if c.CloudExt == nil || *c.CloudExt == "" {
		return "pcd" // default
	}
	return *c.CloudExt
}

// GetToolPath returns the tool_path value or the default.
func (c *Config) GetToolPath() string {
	if c.ToolPath == nil || *c.ToolPath == "" {
		return "../bin/mcalc" // default
	}
	return *c.ToolPath
}

// GetToolTimeout parses and returns the ToolTimeout as a time.Duration.
func (c *Config) GetToolTimeout() time.Duration {
	if c.ToolTimeout == nil || *c.ToolTimeout == "" {
		return 60 * time.Second // default
	}
	d, err := time.ParseDuration(*c.ToolTimeout)
	if err != nil {
		return 60 * time.Second // default on parse error
	}
	return d
}

// GetMoment returns the moment family passed with -m, empty to omit the flag.
func (c *Config) GetMoment() string {
	if c.Moment == nil {
		return ""
	}
	return *c.Moment
}

// GetCut returns the cut value or the default.
func (c *Config) GetCut() string {
	if c.Cut == nil || *c.Cut == "" {
		return "w" // default
	}
	return *c.Cut
}

// GetClassifiers returns the enabled classifier names; nil means all registered.
func (c *Config) GetClassifiers() []string {
	if len(c.Classifiers) == 0 {
		return nil
	}
	return append([]string(nil), c.Classifiers...)
}

// GetSVMC returns the svm_c value or the default.
func (c *Config) GetSVMC() float64 {
	if c.SVMC == nil {
		return 8 // default
	}
	return *c.SVMC
}

// GetSVMGamma returns the svm_gamma value or the default.
func (c *Config) GetSVMGamma() float64 {
	if c.SVMGamma == nil {
		return 0.125 // default
	}
	return *c.SVMGamma
}

// GetLogFormat returns the log_format value or the default.
func (c *Config) GetLogFormat() string {
	if c.LogFormat == nil || *c.LogFormat == "" {
		return "console" // default
	}
	return *c.LogFormat
}
