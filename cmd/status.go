// Copyright (c) 2025 The tokenkeeper Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"tokenkeeper/cli/internal/credential"
	apperrors "tokenkeeper/cli/internal/errors"
	"tokenkeeper/cli/internal/session"
)

var statusJSON bool

// statusReport is the machine-readable form of the status command.
type statusReport struct {
	LoggedIn         bool   `json:"logged_in"`
	Credential       string `json:"credential,omitempty"`
	ExpiresAt        string `json:"expires_at,omitempty"`
	RemainingSeconds int64  `json:"remaining_seconds,omitempty"`
	Store            string `json:"store"`
}

func newStatusReport(s session.Session, now time.Time, backend string) statusReport {
	r := statusReport{LoggedIn: s.IsLoggedIn(), Store: backend}
	if !r.LoggedIn {
		return r
	}
	r.Credential = credential.Mask(s.Credential)
	r.ExpiresAt = credential.FormatExpiry(s.ExpiresAt)
	r.RemainingSeconds = int64(s.Remaining(now) / time.Second)
	return r
}

// statusCmd shows whether a session is active and when it expires.
// The credential itself is never printed in full.
var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"whoami"},
	Short:   "Show the current session",
	Long: `The status command recovers the stored session and reports whether it is
active, the masked credential and its expiry. A session whose remaining
validity is within the configured expiry margin is discarded on recovery and
reported as logged out.

The command exits with status 1 when no session is active.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, closeStore, err := openSession(cmd.Context(), cfg)
		defer closeStore()
		if err != nil {
			return err
		}

		report := newStatusReport(mgr.Current(), time.Now(), cfg.Store.Backend)
		if statusJSON {
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
		} else {
			printStatus(report)
		}
		if !report.LoggedIn {
			return quietError{apperrors.New(apperrors.NotLoggedIn, "not logged in")}
		}
		return nil
	},
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStatus(r statusReport) {
	if !r.LoggedIn {
		pterm.Warning.Println("Not logged in. Run 'tokenkeeper login' to start a session.")
		return
	}
	remaining := time.Duration(r.RemainingSeconds) * time.Second
	body := fmt.Sprintf("Credential: %s\nExpires:    %s\nRemaining:  %s\nStore:      %s",
		r.Credential, r.ExpiresAt, formatRemaining(remaining), r.Store)
	pterm.DefaultBox.WithTitle("Session").Println(body)
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the status as JSON")
}
