// Copyright (c) 2025 The tokenkeeper Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"tokenkeeper/cli/internal/config"
	apperrors "tokenkeeper/cli/internal/errors"
)

var configForce bool

// configCmd groups commands that inspect and create the config file.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := resolveConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), p)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as JSON",
	Long: `The show command prints the configuration after defaults, the config file,
environment overrides and flags were applied. The identity API key is masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := cfg
		if shown.Identity.APIKey != "" {
			shown.Identity.APIKey = "***"
		}
		return writeJSON(cmd.OutOrStdout(), shown)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to the config file",
	Long: `The init command saves the effective configuration, including any --store
or environment overrides, so later runs pick it up without flags. An existing
file is kept unless --force is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := initConfig(cfg, configPath, configForce)
		if err != nil {
			return err
		}
		pterm.Success.Printf("Configuration written to %s\n", p)
		return nil
	},
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.Path()
}

// initConfig saves c to path, or to the default location when path is empty,
// and returns where it was written.
func initConfig(c config.Config, path string, force bool) (string, error) {
	target := path
	if target == "" {
		var err error
		if target, err = config.Path(); err != nil {
			return "", err
		}
	}
	if _, err := os.Stat(target); err == nil && !force {
		return "", apperrors.New(apperrors.ConfigInvalid,
			fmt.Sprintf("%s already exists; use --force to overwrite", target))
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if path == "" {
		return target, config.Save(c)
	}
	return target, config.SaveFile(path, c)
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPathCmd, configShowCmd, configInitCmd)
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing config file")
}
