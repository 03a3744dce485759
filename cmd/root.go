// Package cmd is the blogfeed command line.
package cmd

import (
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/cppla/blogfeed/config"
	"github.com/cppla/blogfeed/utils"
)

const configFlag = "config"

func newConfigFlags() map[string]cobraflags.Flag {
	return map[string]cobraflags.Flag{
		configFlag: &cobraflags.StringFlag{
			Name:  configFlag,
			Value: config.DefaultPath,
			Usage: "Path to the JSON configuration file",
		},
	}
}

// NewRootCommand builds the blogfeed command tree. Without a subcommand it serves.
func NewRootCommand() *cobra.Command {
	flags := newConfigFlags()
	root := &cobra.Command{
		Use:           "blogfeed",
		Short:         "Social blogging API: posts, groups, comments and follow feeds",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, flags[configFlag].GetString())
		},
	}
	cobraflags.RegisterMap(root, flags)

	root.AddCommand(newServeCommand())
	root.AddCommand(newMigrateCommand())
	return root
}

// Execute runs the command line and returns the first error.
func Execute() error {
	return NewRootCommand().Execute()
}

// loadConfig reads path, validates it and installs it as the process
// configuration together with the global logger.
func loadConfig(path string) (config.AppConfig, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return config.AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.AppConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	config.Set(cfg)
	if err := utils.InitLogger(cfg); err != nil {
		return config.AppConfig{}, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}
