package cmd

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/cottand/qinfer/inference/lattice"
	"github.com/spf13/viper"
)

// Output formats of qinfer gen
const (
	FormatSummary = "summary"
	FormatYAML    = "yaml"
	FormatSQLite  = "sqlite"
)

var formats = []string{FormatSummary, FormatYAML, FormatSQLite}

type Config struct {
	Dir        string        `mapstructure:"dir"`
	TypeSystem string        `mapstructure:"type_system"`
	Output     OutputConfig  `mapstructure:"output"`
	Log        LogConfig     `mapstructure:"log"`
	Oracle     []OracleEntry `mapstructure:"oracle"`
}

// OracleEntry gives the value of a library function or variable, by full name such as
// "os.Getenv", a qualifier of the type system
type OracleEntry struct {
	Name      string `mapstructure:"name"`
	Qualifier string `mapstructure:"qualifier"`
}

type OutputConfig struct {
	Format string `mapstructure:"format"`
	// Path is the file written to, stdout if empty. The sqlite format needs one
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level    string   `mapstructure:"level"`
	Sections []string `mapstructure:"sections"`
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("dir", ".")
	v.SetDefault("type_system", "hardcoded")

	v.SetDefault("output.format", FormatSummary)
	v.SetDefault("output.path", "")

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.sections", []string{"inference"})

	v.SetDefault("oracle", []OracleEntry{})
}

// NewViper returns a viper reading QINFER_ environment variables over the defaults,
// e.g. QINFER_OUTPUT_FORMAT for output.format. configFile, if not empty, is read too
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("QINFER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}
	return v, nil
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if !slices.Contains(formats, config.Output.Format) {
		return nil, fmt.Errorf("unknown output format %q, expected one of %v", config.Output.Format, formats)
	}
	if config.Output.Format == FormatSQLite && config.Output.Path == "" {
		return nil, fmt.Errorf("the %s output format needs an output path", FormatSQLite)
	}
	if _, err := config.Log.SlogLevel(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	return level, nil
}

// Known resolves the oracle qualifiers against l
func (c *Config) Known(l *lattice.Lattice) (map[string]lattice.Qualifier, error) {
	known := make(map[string]lattice.Qualifier, len(c.Oracle))
	for _, entry := range c.Oracle {
		qualifier := lattice.Qualifier(entry.Qualifier)
		if !l.Contains(qualifier) {
			return nil, fmt.Errorf("oracle entry %s: qualifier %s is not in the lattice %v", entry.Name, entry.Qualifier, l)
		}
		if _, ok := known[entry.Name]; ok {
			return nil, fmt.Errorf("oracle entry %s is given twice", entry.Name)
		}
		known[entry.Name] = qualifier
	}
	return known, nil
}
