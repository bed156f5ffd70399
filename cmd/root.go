// Copyright (c) 2025 The tokenkeeper Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for tokenkeeper.
// It implements subcommands to sign in, inspect and end the session using the
// Cobra CLI framework. Every command loads configuration, recovers the
// session left by a previous run, and works on that single session manager.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tokenkeeper/cli/internal/config"
	"tokenkeeper/cli/internal/logging"
)

var (
	showVersion  bool
	configPath   string
	storeFlag    string
	logLevelFlag string
	verbose      bool

	// cfg is loaded once per invocation in PersistentPreRunE.
	cfg config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tokenkeeper",
	Short: "Sign in and keep a bearer session until it expires",
	Long: `tokenkeeper signs in against an identity provider and keeps the resulting
bearer credential, together with its expiry, in durable storage (OS keychain by
default). The session survives restarts and ends automatically when the
credential's validity window elapses.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			cfg, err = config.LoadFile(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return err
		}
		if storeFlag != "" {
			cfg.Store.Backend = storeFlag
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		if logLevelFlag != "" {
			cfg.LogLevel = logLevelFlag
		}
		if verbose {
			cfg.LogLevel = "debug"
		}
		logging.InitLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("tokenkeeper %s\n", Version)
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application. SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		var q quietError
		if !errors.As(err, &q) {
			fmt.Fprintln(os.Stderr, logging.Mask(err.Error()))
		}
		os.Exit(1)
	}
}

// quietError fails the command without printing, for commands that already
// reported the outcome.
type quietError struct{ err error }

func (q quietError) Error() string { return q.err.Error() }
func (q quietError) Unwrap() error { return q.err }

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI version information")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a .toml or .json config file (default $XDG_CONFIG_HOME/tokenkeeper/config.toml or config.json)")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "Session store backend: keyring, file, sqlite, redis, postgres or memory")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
