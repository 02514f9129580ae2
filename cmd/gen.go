package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/cottand/qinfer/export"
	"github.com/cottand/qinfer/gohost"
	"github.com/cottand/qinfer/inference/typesys"
	"github.com/cottand/qinfer/internal/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var GenCmd = &cobra.Command{
	Use:          "gen [packages...]",
	Short:        "Generate the qualifier constraints of Go packages",
	Long:         "Generate the slots and constraints of the Go packages matching the given patterns (./... by default), for an external solver.",
	RunE:         runGen,
	SilenceUsage: true,
}

var configFile *string

func init() {
	flags := GenCmd.Flags()
	configFile = flags.StringP("config", "c", "", "config file (TOML, YAML or JSON)")
	flags.StringP("dir", "C", ".", "directory the package patterns are relative to")
	flags.StringP("type-system", "t", "hardcoded", "type system to infer qualifiers of")
	flags.StringP("format", "f", FormatSummary, "output format: summary, yaml or sqlite")
	flags.StringP("out", "o", "", "output path, stdout if empty")
	flags.StringP("log-level", "l", "warn", "log level")
}

// loadConfig merges, by increasing precedence, defaults, the config file, QINFER_
// environment variables and flags set on the command line
func loadConfig(cmd *cobra.Command) (*Config, error) {
	v, err := NewViper(*configFile)
	if err != nil {
		return nil, err
	}
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return nil, err
	}
	return LoadWithViper(v)
}

// bindFlags overrides the config keys of the flags which were set
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"dir":           "dir",
		"type_system":   "type-system",
		"output.format": "format",
		"output.path":   "out",
		"log.level":     "log-level",
	}
	for key, flag := range bindings {
		f := flags.Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("could not bind flag %s: %w", flag, err)
		}
	}
	return nil
}

func runGen(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg.Log); err != nil {
		return err
	}

	system, err := typesys.Lookup(cfg.TypeSystem)
	if err != nil {
		return err
	}
	known, err := cfg.Known(system.Lattice())
	if err != nil {
		return err
	}

	s, genErr := gohost.Generate(cmd.Context(), gohost.Options{
		Dir:      cfg.Dir,
		Patterns: args,
		System:   system,
		Known:    known,
	})
	if s == nil {
		return fmt.Errorf("could not generate constraints: %w", genErr)
	}
	doc, err := export.NewDocument(s, system)
	if err != nil {
		return fmt.Errorf("could not export session: %w", err)
	}
	if err := writeOutput(cmd, cfg.Output, doc); err != nil {
		return err
	}
	if genErr != nil {
		return fmt.Errorf("constraint generation was incomplete: %w", genErr)
	}
	return nil
}

// setupLogging applies the level and sections of c to the process logger
func setupLogging(c LogConfig) error {
	level, err := c.SlogLevel()
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.EnableSections(c.Sections...)
	return nil
}

func writeOutput(cmd *cobra.Command, out OutputConfig, doc *export.Document) (err error) {
	if out.Format == FormatSQLite {
		store, openErr := export.OpenSQLite(cmd.Context(), out.Path)
		if openErr != nil {
			return openErr
		}
		defer func() {
			if cerr := store.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("could not close output database: %w", cerr)
			}
		}()
		return store.Save(cmd.Context(), doc)
	}

	var w io.Writer = cmd.OutOrStdout()
	if out.Path != "" {
		f, createErr := os.Create(out.Path)
		if createErr != nil {
			return fmt.Errorf("could not create output file: %w", createErr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("could not close output file: %w", cerr)
			}
		}()
		w = f
	}
	switch out.Format {
	case FormatYAML:
		return export.WriteYAML(w, doc)
	default:
		return printSummary(w, doc)
	}
}
