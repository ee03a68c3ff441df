/*
Package config loads the variance job configuration.

PURPOSE:
  One YAML document describes a run: where the three inputs live, where
  the report goes, the policy thresholds, column aliases and how a failed
  run maps to an exit code. Config values are plain data; Options turns
  them into a validated pipeline.Options.

LOAD ORDER (later wins):
  1. Default()
  2. YAML file, when a path is given
  3. VARIANCE_* variables from .env (joho/godotenv), then the process
     environment

ENVIRONMENT:
  VARIANCE_SHIFTS_FILE        inputs.shifts.path
  VARIANCE_LEAVE_FILE         inputs.leave.path
  VARIANCE_ROSTER_FILE        inputs.roster.path
  VARIANCE_OUTPUT_FILE        output.path
  VARIANCE_EXCESS_EXCEPTIONS  policy.excess_exceptions_per_month
  VARIANCE_HISTORY_DB         history.path
  VARIANCE_LOG_LEVEL          log.level

SEE ALSO:
  - factory/policy.go: PolicyJSON document
  - pipeline/pipeline.go: Options consumer
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/warp/shift-variance/factory"
	"github.com/warp/shift-variance/pipeline"
	"github.com/warp/shift-variance/report"
	"github.com/warp/shift-variance/tabular"
)

// =============================================================================
// CONFIG TYPES
// =============================================================================

type Config struct {
	Inputs        Inputs              `yaml:"inputs"`
	Output        FileConfig          `yaml:"output"`
	Dates         DatesConfig         `yaml:"dates"`
	Policy        factory.PolicyJSON  `yaml:"policy"`
	Aliases       map[string][]string `yaml:"aliases"`
	FailurePolicy string              `yaml:"failure_policy" validate:"omitempty,oneof=always_zero nonzero_on_failure"`
	History       HistoryConfig       `yaml:"history"`
	Log           LogConfig           `yaml:"log"`
	Server        ServerConfig        `yaml:"server"`
}

type Inputs struct {
	Shifts FileConfig `yaml:"shifts"`
	Leave  FileConfig `yaml:"leave"`
	Roster FileConfig `yaml:"roster"`
}

type FileConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format" validate:"omitempty,oneof=csv xlsx"`
	Sheet  string `yaml:"sheet"`
}

type DatesConfig struct {
	DayFirst bool `yaml:"day_first"`
}

type HistoryConfig struct {
	// Path of the SQLite run history. Empty keeps history in memory.
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

type ServerConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
	// Schedule is a Go duration ("1h", "30m") between automatic runs while
	// serving. Empty disables scheduled runs.
	Schedule string `yaml:"schedule"`
}

// ScheduleInterval parses Schedule. Validate has already rejected bad values.
func (s ServerConfig) ScheduleInterval() time.Duration {
	if s.Schedule == "" {
		return 0
	}
	d, _ := time.ParseDuration(s.Schedule)
	return d
}

const (
	DefaultShiftsPath = "data/sample_shift_data.csv"
	DefaultLeavePath  = "data/sample_leave_data.csv"
	DefaultRosterPath = "data/sample_sow_data.csv"
	DefaultOutputPath = "data/variance_report.csv"
	DefaultPort       = 8080
)

func Default() *Config {
	return &Config{
		Inputs: Inputs{
			Shifts: FileConfig{Path: DefaultShiftsPath},
			Leave:  FileConfig{Path: DefaultLeavePath},
			Roster: FileConfig{Path: DefaultRosterPath},
		},
		Output:        FileConfig{Path: DefaultOutputPath},
		FailurePolicy: string(pipeline.AlwaysZero),
		Log:           LogConfig{Level: "info"},
		Server:        ServerConfig{Port: DefaultPort},
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads path (optional) and applies environment overrides from .env in
// the working directory and the process environment.
func Load(path string) (*Config, error) {
	return LoadWith(path, ".env", os.LookupEnv)
}

// LoadWith is Load with an explicit env file and lookup function.
func LoadWith(path, envFile string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = m
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read env file %s: %w", envFile, err)
		}
	}
	get := func(key string) (string, bool) {
		if lookup != nil {
			if v, ok := lookup(key); ok {
				return v, true
			}
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(get); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(get func(string) (string, bool)) error {
	strs := map[string]*string{
		"VARIANCE_SHIFTS_FILE": &c.Inputs.Shifts.Path,
		"VARIANCE_LEAVE_FILE":  &c.Inputs.Leave.Path,
		"VARIANCE_ROSTER_FILE": &c.Inputs.Roster.Path,
		"VARIANCE_OUTPUT_FILE": &c.Output.Path,
		"VARIANCE_HISTORY_DB":  &c.History.Path,
		"VARIANCE_LOG_LEVEL":   &c.Log.Level,
	}
	for key, dst := range strs {
		if v, ok := get(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := get("VARIANCE_EXCESS_EXCEPTIONS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("VARIANCE_EXCESS_EXCEPTIONS: %w", err)
		}
		c.Policy.ExcessExceptionsPerMonth = &n
	}
	return nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if strings.TrimSpace(c.Inputs.Shifts.Path) == "" {
		return fmt.Errorf("invalid config: inputs.shifts.path is required")
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		return fmt.Errorf("invalid config: output.path is required")
	}
	if c.Server.Schedule != "" {
		d, err := time.ParseDuration(c.Server.Schedule)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid config: server.schedule %q is not a positive duration", c.Server.Schedule)
		}
	}
	if n := c.Policy.ExcessExceptionsPerMonth; n != nil && *n < 0 {
		return fmt.Errorf("invalid config: policy.excess_exceptions_per_month must be >= 0")
	}
	return nil
}

// =============================================================================
// PIPELINE OPTIONS
// =============================================================================

// Options builds the pipeline inputs described by c.
func (c *Config) Options() (pipeline.Options, error) {
	policy, err := factory.NewPolicyFactory().FromJSON(c.Policy)
	if err != nil {
		return pipeline.Options{}, err
	}
	dec, err := factory.NewDecoder(c.Aliases, c.Dates.DayFirst)
	if err != nil {
		return pipeline.Options{}, err
	}
	failure, err := pipeline.ParseFailurePolicy(c.FailurePolicy)
	if err != nil {
		return pipeline.Options{}, err
	}

	shifts, err := c.Inputs.Shifts.source("shifts")
	if err != nil {
		return pipeline.Options{}, err
	}
	leave, err := c.Inputs.Leave.source("leave")
	if err != nil {
		return pipeline.Options{}, err
	}
	roster, err := c.Inputs.Roster.source("roster")
	if err != nil {
		return pipeline.Options{}, err
	}
	out, err := c.Output.source("output")
	if err != nil {
		return pipeline.Options{}, err
	}

	return pipeline.Options{
		Shifts:        shifts,
		Leave:         leave,
		Roster:        roster,
		Output:        report.Writer{Path: out.Path, Format: out.Format},
		Decoder:       dec,
		Policy:        policy,
		FailurePolicy: failure,
	}, nil
}

// FallbackWriter is the report writer to use when the configuration itself
// could not be turned into options.
func (c *Config) FallbackWriter() report.Writer {
	path := c.Output.Path
	if path == "" {
		path = DefaultOutputPath
	}
	format, err := tabular.ParseFormat(c.Output.Format)
	if err != nil || c.Output.Format == "" {
		format = tabular.FormatFromPath(path)
	}
	return report.Writer{Path: path, Format: format}
}

func (f FileConfig) source(name string) (tabular.Source, error) {
	format := tabular.FormatFromPath(f.Path)
	if f.Format != "" {
		var err error
		if format, err = tabular.ParseFormat(f.Format); err != nil {
			return tabular.Source{}, fmt.Errorf("%s: %w", name, err)
		}
	}
	return tabular.Source{Name: name, Path: strings.TrimSpace(f.Path), Format: format, Sheet: f.Sheet}, nil
}
