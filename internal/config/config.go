// Package config loads and validates runtime options for workload
// construction.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"shaper/internal/runinfo"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Modes of construction.
const (
	// ModeSample draws an i.i.d. workload from a parametric distribution.
	ModeSample = "sample"
	// ModeReconstruct rebuilds a domain workload from recorded per-database
	// workloads so that its shape matches a target distribution.
	ModeReconstruct = "reconstruct"
)

// Config captures all runtime options for one construction run.
type Config struct {
	Mode         string             `yaml:"mode"`
	Benchmark    string             `yaml:"benchmark_type"`
	Split        string             `yaml:"split"`
	TargetDB     string             `yaml:"target_db"`
	Domain       string             `yaml:"domain"`
	PartitionDBs []string           `yaml:"partition_dbs"`
	Distribution Distribution       `yaml:"distribution"`
	Paths        Paths              `yaml:"paths"`
	Shuffle      bool               `yaml:"shuffle"`
	Archive      bool               `yaml:"archive"`
	Storage      StorageConfig      `yaml:"storage"`
	Logging      Logging            `yaml:"logging"`
	RunInfo      *runinfo.BasicInfo `yaml:"-"`
}

// Distribution selects the sampling family and its parameters.
type Distribution struct {
	Type       string  `yaml:"type"`
	Criterion  string  `yaml:"criterion"`
	Alpha      float64 `yaml:"alpha"`
	PowerLawS  float64 `yaml:"power_law_s"`
	NumQueries int     `yaml:"num_queries"`
	Seed       int64   `yaml:"seed"`
}

// Key renders the distribution key used in distribution documents and source
// workload file names: "uniform" or "zipf_<criterion>".
func (d Distribution) Key() string {
	if d.Type == "uniform" {
		return "uniform"
	}
	return d.Type + "_" + d.Criterion
}

// SourceWorkloadName is the file name of a recorded per-database workload for
// this distribution.
func (d Distribution) SourceWorkloadName() string {
	if d.Type == "uniform" {
		return "uniform_rank_1k.json"
	}
	return fmt.Sprintf("zipf_%s_1k.json", d.Criterion)
}

// Paths locates input documents and the output directory.
type Paths struct {
	CatalogFile      string `yaml:"catalog_file"`
	InstancePoolFile string `yaml:"instance_pool_file"`
	DistributionFile string `yaml:"distribution_file"`
	WorkloadDir      string `yaml:"workload_dir"`
	OutputDir        string `yaml:"output_dir"`
	OutputFile       string `yaml:"output_file"`
}

// Logging controls stdout logging behavior.
type Logging struct {
	Verbose bool `yaml:"verbose"`
}

// StorageConfig holds external storage settings for artifact upload.
type StorageConfig struct {
	S3  S3Config  `yaml:"s3"`
	GCS GCSConfig `yaml:"gcs"`
}

// CloudEnabled reports whether any cloud storage backend is enabled.
func (s StorageConfig) CloudEnabled() bool {
	return s.GCS.Enabled || s.S3.Enabled
}

// S3Config configures S3 uploads (legacy and S3-compatible endpoints).
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// GCSConfig configures GCS uploads.
type GCSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Load reads configuration from a YAML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	normalizeConfig(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	cfg.RunInfo = runinfo.FromEnv()
	return cfg, nil
}

const (
	alphaDefault      = 1.0
	powerLawSDefault  = 2.0
	numQueriesDefault = 1000
	seedDefault       = 42
)

var benchmarkTargetDBs = map[string][]string{
	"EHRSQL":           {"mimic_iii", "eicu"},
	"ScienceBenchmark": {"sdss", "cordis", "oncomx"},
	"BIRD":             nil, // any target db
}

func defaultConfig() Config {
	return Config{
		Mode:      ModeSample,
		Benchmark: "EHRSQL",
		Split:     "Train",
		Distribution: Distribution{
			Type:       "zipf",
			Criterion:  "rank",
			Alpha:      alphaDefault,
			PowerLawS:  powerLawSDefault,
			NumQueries: numQueriesDefault,
			Seed:       seedDefault,
		},
		Paths: Paths{
			OutputDir:   "data/workload",
			WorkloadDir: "data/workloads",
		},
		Shuffle: true,
	}
}

func normalizeConfig(cfg *Config) {
	if cfg.Distribution.Alpha <= 0 {
		cfg.Distribution.Alpha = alphaDefault
	}
	if cfg.Distribution.PowerLawS <= 0 {
		cfg.Distribution.PowerLawS = powerLawSDefault
	}
	if cfg.Distribution.NumQueries <= 0 {
		cfg.Distribution.NumQueries = numQueriesDefault
	}
	if cfg.Distribution.Seed == 0 {
		cfg.Distribution.Seed = seedDefault
	}
	if cfg.Paths.CatalogFile == "" && cfg.Benchmark != "" {
		cfg.Paths.CatalogFile = filepath.Join("data", "distribution", cfg.Benchmark+"_m2.json")
	}
	if cfg.Mode == ModeReconstruct && cfg.Domain == "" {
		cfg.Domain = cfg.TargetDB
	}
}

func validateConfig(cfg Config) error {
	switch cfg.Mode {
	case ModeSample, ModeReconstruct:
	default:
		return errors.Errorf("unsupported mode: %q", cfg.Mode)
	}
	dbs, ok := benchmarkTargetDBs[cfg.Benchmark]
	if !ok {
		return errors.Errorf("unsupported benchmark_type: %q", cfg.Benchmark)
	}
	if dbs != nil && cfg.Mode == ModeSample && !contains(dbs, cfg.TargetDB) {
		return errors.Errorf("target_db %q is not valid for %s (expected one of %v)", cfg.TargetDB, cfg.Benchmark, dbs)
	}
	switch cfg.Split {
	case "Train", "Dev", "Combined":
	default:
		return errors.Errorf("unsupported split: %q", cfg.Split)
	}
	switch cfg.Distribution.Type {
	case "zipf", "uniform":
	default:
		return errors.Errorf("unsupported distribution type: %q", cfg.Distribution.Type)
	}
	switch cfg.Distribution.Criterion {
	case "rank", "random", "query_len":
	default:
		return errors.Errorf("unsupported criterion: %q", cfg.Distribution.Criterion)
	}
	if cfg.Mode == ModeReconstruct && len(cfg.PartitionDBs) == 0 {
		return errors.New("reconstruct mode requires partition_dbs")
	}
	return nil
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

// OutputFile resolves the artifact file name, deriving the original naming
// scheme when no explicit override is configured.
func (c Config) OutputFile() string {
	if c.Paths.OutputFile != "" {
		return c.Paths.OutputFile
	}
	d := c.Distribution
	scope := c.TargetDB
	if c.Mode == ModeReconstruct {
		scope = c.Domain
	}
	var name string
	switch {
	case d.Type == "uniform":
		name = fmt.Sprintf("%s_%s_%s_uniform_n%d.json", c.Benchmark, c.Split, scope, d.NumQueries)
	case d.Criterion == "query_len":
		name = fmt.Sprintf("%s_%s_%s_zipf_%s_powerlaw%g_n%d.json", c.Benchmark, c.Split, scope, d.Criterion, d.PowerLawS, d.NumQueries)
	default:
		name = fmt.Sprintf("%s_%s_%s_zipf_%s_alpha%g_n%d.json", c.Benchmark, c.Split, scope, d.Criterion, d.Alpha, d.NumQueries)
	}
	return filepath.Join(c.Paths.OutputDir, name)
}
