package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/l1jgo/worldsingleton/internal/config"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "config/singletonhost.toml"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "singletonhost",
		Short: "Run a host with per-world singletons",
		Long: `singletonhost runs a small game host: worlds, game instances and a
tick loop, with per-world singletons reachable from Go and Lua scripts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	cmd.SetVersionTemplate(`{{printf "singletonhost version %s\n" .Version}}`)
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"config file (default $"+config.EnvPath+" or "+defaultConfigPath+")")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newClassesCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// loadConfig reads the selected config file. Without an explicit path, a
// missing default file means built-in defaults.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	path := config.ResolvePath(o.configPath, "")
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return config.Default(), nil
		}
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of singletonhost",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "singletonhost version %s\n", version)
		},
	}
}
