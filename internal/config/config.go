package config

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Binning   BinningConfig   `yaml:"binning" mapstructure:"binning"`
	Cluster   ClusterConfig   `yaml:"cluster" mapstructure:"cluster"`
	Selection SelectionConfig `yaml:"selection" mapstructure:"selection"`
	Scaling   ScalingConfig   `yaml:"scaling" mapstructure:"scaling"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the training data and declares the expected schema.
type DataConfig struct {
	Dir           string   `yaml:"dir" mapstructure:"dir"`
	XTrain        string   `yaml:"x_train" mapstructure:"x_train"`
	YTrain        string   `yaml:"y_train" mapstructure:"y_train"`
	Target        string   `yaml:"target" mapstructure:"target"`
	PositiveLabel string   `yaml:"positive_label" mapstructure:"positive_label"`
	Features      []string `yaml:"features" mapstructure:"features"`
	Categorical   []string `yaml:"categorical" mapstructure:"categorical"`
	Numeric       []string `yaml:"numeric" mapstructure:"numeric"`
}

// FeatureParams holds the per-feature binning fit parameters.
type FeatureParams struct {
	MonotonicTrend string `yaml:"monotonic_trend" mapstructure:"monotonic_trend"`
}

// BinningConfig configures the optimal binning process.
type BinningConfig struct {
	SpecialCodes  []float64 `yaml:"special_codes" mapstructure:"special_codes"`
	MissingCodes  []float64 `yaml:"missing_codes" mapstructure:"missing_codes"`
	MinPrebinSize float64   `yaml:"min_prebin_size" mapstructure:"min_prebin_size"`
	MaxNPrebins   int       `yaml:"max_n_prebins" mapstructure:"max_n_prebins"`
	MaxNBins      int       `yaml:"max_n_bins" mapstructure:"max_n_bins"`
	MinIV         float64   `yaml:"min_iv" mapstructure:"min_iv"`
	DefaultTrend  string    `yaml:"default_trend" mapstructure:"default_trend"`
	ParamsFile    string    `yaml:"params_file" mapstructure:"params_file"`

	// Params is read from ParamsFile. Feature names are case-sensitive, so
	// they cannot go through viper's key normalization.
	Params map[string]FeatureParams `yaml:"-" mapstructure:"-"`
}

// ClusterConfig configures variable clustering.
type ClusterConfig struct {
	MaxEigen    float64 `yaml:"max_eigen" mapstructure:"max_eigen"`
	MaxClusters int     `yaml:"max_clusters" mapstructure:"max_clusters"`
	MaxIter     int     `yaml:"max_iter" mapstructure:"max_iter"`
}

// SelectionConfig configures cross-validated recursive feature elimination.
type SelectionConfig struct {
	CVFolds        int     `yaml:"cv_folds" mapstructure:"cv_folds"`
	Workers        int     `yaml:"workers" mapstructure:"workers"`
	MaxIter        int     `yaml:"max_iter" mapstructure:"max_iter"`
	C              float64 `yaml:"c" mapstructure:"c"`
	ScoreTolerance float64 `yaml:"score_tolerance" mapstructure:"score_tolerance"`
	MinFeatures    int     `yaml:"min_features" mapstructure:"min_features"`
}

// ScalingConfig holds the points-to-double-odds scaling parameters.
type ScalingConfig struct {
	PDO            float64 `yaml:"pdo" mapstructure:"pdo"`
	Odds           float64 `yaml:"odds" mapstructure:"odds"`
	Points         float64 `yaml:"scorecard_points" mapstructure:"scorecard_points"`
	InterceptBased bool    `yaml:"intercept_based" mapstructure:"intercept_based"`
}

// OutputConfig configures where pipeline artifacts are written.
type OutputConfig struct {
	Dir  string `yaml:"dir" mapstructure:"dir"`
	XLSX bool   `yaml:"xlsx" mapstructure:"xlsx"`
}

// StoreConfig configures the run registry backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the scoring server.
type ServerConfig struct {
	Port         int     `yaml:"port" mapstructure:"port"`
	ModelPath    string  `yaml:"model_path" mapstructure:"model_path"`
	ModelName    string  `yaml:"model_name" mapstructure:"model_name"`
	ModelVersion string  `yaml:"model_version" mapstructure:"model_version"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst        int     `yaml:"burst" mapstructure:"burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCORECARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.x_train", "X_train.parquet")
	v.SetDefault("data.y_train", "y_train.parquet")
	v.SetDefault("data.positive_label", "Bad")
	v.SetDefault("binning.special_codes", []float64{-9, -8, -7})
	v.SetDefault("binning.missing_codes", []float64{-99_000_000})
	v.SetDefault("binning.min_prebin_size", 1e-4)
	v.SetDefault("binning.max_n_prebins", 20)
	v.SetDefault("binning.max_n_bins", 0)
	v.SetDefault("binning.min_iv", 0.1)
	v.SetDefault("binning.default_trend", "auto")
	v.SetDefault("binning.params_file", "")
	v.SetDefault("cluster.max_eigen", 0.7)
	v.SetDefault("cluster.max_clusters", 0)
	v.SetDefault("cluster.max_iter", 100)
	v.SetDefault("selection.cv_folds", 5)
	v.SetDefault("selection.workers", 0)
	v.SetDefault("selection.max_iter", 100)
	v.SetDefault("selection.c", 1.0)
	v.SetDefault("selection.score_tolerance", 1e-9)
	v.SetDefault("selection.min_features", 1)
	v.SetDefault("scaling.pdo", 30)
	v.SetDefault("scaling.odds", 20)
	v.SetDefault("scaling.scorecard_points", 750)
	v.SetDefault("scaling.intercept_based", true)
	v.SetDefault("output.dir", "data/pipeline")
	v.SetDefault("output.xlsx", false)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/pipeline/runs.db")
	v.SetDefault("server.port", 9696)
	v.SetDefault("server.model_path", "data/pipeline/model.json")
	v.SetDefault("server.model_name", "risk_score_model")
	v.SetDefault("server.model_version", "V1")
	v.SetDefault("server.rate_limit", 50)
	v.SetDefault("server.burst", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	params, err := LoadFeatureParams(cfg.Binning.ParamsFile)
	if err != nil {
		return nil, err
	}
	cfg.Binning.Params = params

	return &cfg, nil
}

// LoadFeatureParams reads a YAML map of feature name to binning parameters.
// An empty path yields an empty map.
func LoadFeatureParams(path string) (map[string]FeatureParams, error) {
	params := make(map[string]FeatureParams)
	if path == "" {
		return params, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read binning params %s", path)
	}
	if err := yaml.Unmarshal(data, &params); err != nil {
		return nil, eris.Wrapf(err, "config: parse binning params %s", path)
	}
	return params, nil
}

var validTrends = map[string]bool{
	"":           true,
	"auto":       true,
	"ascending":  true,
	"descending": true,
	"none":       true,
}

// Validate checks that required configuration is present for the given mode.
// Modes: "fit" (full pipeline), "score" (batch scoring), "serve" (scoring server).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "fit":
		if c.Data.XTrain == "" {
			errs = append(errs, "data.x_train is required")
		}
		if c.Data.YTrain == "" {
			errs = append(errs, "data.y_train is required")
		}
		if c.Output.Dir == "" {
			errs = append(errs, "output.dir is required")
		}
		errs = append(errs, c.pipelineErrors()...)
	case "score":
		if c.Server.ModelPath == "" {
			errs = append(errs, "server.model_path is required")
		}
	case "serve":
		if c.Server.ModelPath == "" {
			errs = append(errs, "server.model_path is required")
		}
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server.rate_limit must be >= 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) pipelineErrors() []string {
	var errs []string

	if c.Binning.MinPrebinSize < 0 || c.Binning.MinPrebinSize >= 0.5 {
		errs = append(errs, "binning.min_prebin_size must be in [0, 0.5)")
	}
	if c.Binning.MaxNPrebins < 2 {
		errs = append(errs, "binning.max_n_prebins must be >= 2")
	}
	if c.Binning.MaxNBins < 0 {
		errs = append(errs, "binning.max_n_bins must be >= 0")
	}
	if c.Binning.MinIV < 0 {
		errs = append(errs, "binning.min_iv must be >= 0")
	}
	if !validTrends[c.Binning.DefaultTrend] {
		errs = append(errs, fmt.Sprintf("binning.default_trend %q is not one of auto, ascending, descending, none", c.Binning.DefaultTrend))
	}
	for name, p := range c.Binning.Params {
		if !validTrends[p.MonotonicTrend] {
			errs = append(errs, fmt.Sprintf("binning params for %s: unknown monotonic_trend %q", name, p.MonotonicTrend))
		}
	}
	if c.Cluster.MaxEigen <= 0 {
		errs = append(errs, "cluster.max_eigen must be > 0")
	}
	if c.Cluster.MaxClusters < 0 {
		errs = append(errs, "cluster.max_clusters must be >= 0")
	}
	if c.Cluster.MaxIter < 1 {
		errs = append(errs, "cluster.max_iter must be >= 1")
	}
	if c.Selection.CVFolds < 2 {
		errs = append(errs, "selection.cv_folds must be >= 2")
	}
	if c.Selection.C <= 0 {
		errs = append(errs, "selection.c must be > 0")
	}
	if c.Selection.MaxIter < 1 {
		errs = append(errs, "selection.max_iter must be >= 1")
	}
	if c.Selection.MinFeatures < 1 {
		errs = append(errs, "selection.min_features must be >= 1")
	}
	if c.Scaling.PDO <= 0 {
		errs = append(errs, "scaling.pdo must be > 0")
	}
	if c.Scaling.Odds <= 0 {
		errs = append(errs, "scaling.odds must be > 0")
	}

	return errs
}

// Scorecard is the settings value threaded through every fit stage. It
// shares no memory with the Config it came from.
type Scorecard struct {
	Features    []string
	Categorical []string
	Numeric     []string
	Binning     BinningConfig
	Cluster     ClusterConfig
	Selection   SelectionConfig
	Scaling     ScalingConfig
}

// Scorecard returns a deep copy of the fit settings.
func (c *Config) Scorecard() Scorecard {
	b := c.Binning
	b.SpecialCodes = slices.Clone(b.SpecialCodes)
	b.MissingCodes = slices.Clone(b.MissingCodes)
	b.Params = maps.Clone(b.Params)
	return Scorecard{
		Features:    slices.Clone(c.Data.Features),
		Categorical: slices.Clone(c.Data.Categorical),
		Numeric:     slices.Clone(c.Data.Numeric),
		Binning:     b,
		Cluster:     c.Cluster,
		Selection:   c.Selection,
		Scaling:     c.Scaling,
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
