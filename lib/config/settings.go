package config

import (
	"fmt"

	"github.com/jessevdk/go-flags"
)

type Settings struct {
	Config         Config
	VerboseLogging bool

	// DefinitionsPath points at the repo definitions YAML (apply/plan).
	DefinitionsPath string
	// Positional is whatever trails the recognized flags, typically the subcommand.
	Positional []string
}

// LoadSettings will take the flags and then parse, loadConfig is optional for testing purposes.
func LoadSettings(args []string, loadConfig bool) (*Settings, error) {
	var opts struct {
		ConfigFilePath  string `short:"c" long:"config" description:"path to the feature store config file"`
		DefinitionsPath string `short:"f" long:"definitions" description:"path to the repo definitions file" optional:"true"`
		Verbose         bool   `short:"v" long:"verbose" description:"debug logging" optional:"true"`
	}

	remaining, err := flags.ParseArgs(&opts, args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse args: %w", err)
	}

	settings := &Settings{
		VerboseLogging:  opts.Verbose,
		DefinitionsPath: opts.DefinitionsPath,
		Positional:      remaining,
	}

	if loadConfig {
		config, err := readFileToConfig(opts.ConfigFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		if err = config.Validate(); err != nil {
			return nil, fmt.Errorf("failed to validate config: %w", err)
		}

		settings.Config = *config
	}

	return settings, nil
}
