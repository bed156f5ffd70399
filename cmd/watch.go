// Copyright (c) 2025 The tokenkeeper Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"time"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	apperrors "tokenkeeper/cli/internal/errors"
	"tokenkeeper/cli/internal/session"
)

var watchInterval time.Duration

// watchCmd keeps the process alive until the session expires, showing a
// live countdown. It ends when the expiry fires or on interrupt.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show a live countdown until the session expires",
	Long: `The watch command recovers the stored session and counts down to its expiry.
When the validity window elapses the session is logged out automatically,
removing the credential from the store, and the command exits.

Press Ctrl+C to stop watching without touching the session.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		expired := make(chan session.Session, 1)
		mgr, closeStore, err := openSession(ctx, cfg, session.WithExpireHook(func(s session.Session) {
			select {
			case expired <- s:
			default:
			}
		}))
		defer closeStore()
		if err != nil {
			return err
		}
		if !mgr.IsLoggedIn() {
			return apperrors.New(apperrors.NotLoggedIn, "not logged in; run 'tokenkeeper login'")
		}

		cursor.Hide()
		defer cursor.Show()
		area, err := pterm.DefaultArea.Start()
		if err != nil {
			return err
		}
		defer area.Stop()

		interval := watchInterval
		if interval <= 0 {
			interval = time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			area.Update(renderCountdown(mgr.Current(), time.Now()))
			select {
			case <-ctx.Done():
				return nil
			case s := <-expired:
				area.Update(pterm.Warning.Sprintf("Session expired at %s and was logged out\n",
					s.ExpiresAt.Local().Format(time.RFC1123)))
				return nil
			case <-ticker.C:
			}
		}
	},
}

// renderCountdown formats one frame of the watch display.
func renderCountdown(s session.Session, now time.Time) string {
	if !s.IsLoggedIn() {
		return pterm.Gray("No active session\n")
	}
	remaining := s.Remaining(now)
	label := pterm.Green(formatRemaining(remaining))
	if remaining < time.Hour {
		label = pterm.Yellow(formatRemaining(remaining))
	}
	return fmt.Sprintf("Session expires in %s (at %s)\n", label, s.ExpiresAt.Local().Format(time.Kitchen))
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "Refresh interval of the countdown")
}
