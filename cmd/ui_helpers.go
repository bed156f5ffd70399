package cmd

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"tokenkeeper/cli/internal/session"
	"tokenkeeper/cli/internal/terminal"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

// startInlineSpinner starts a simple inline spinner animation on a single line.
// It redraws frames followed by text on the same line until the returned
// function is called, which clears the line and waits for the goroutine.
func startInlineSpinner(w io.Writer, text string, frames []string, interval time.Duration) func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			line := fmt.Sprintf("%s %s", frames[i%len(frames)], text)
			select {
			case <-stop:
				fmt.Fprintf(w, "\r%*s\r", len(line), "")
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s", line)
				i++
			}
		}
	}()
	return func() {
		close(stop)
		wg.Wait()
	}
}

// newPrompter prompts on stderr so stdout stays clean for piping.
func newPrompter() *terminal.Prompter {
	return terminal.NewPrompter(os.Stdin, os.Stderr)
}

// askCredentials returns email and password, prompting for whichever is empty.
// On a terminal the email prompt is cleared before the password is read.
func askCredentials(p *terminal.Prompter, email, password string) (string, string, error) {
	const emailLabel = "Email: "
	if email == "" {
		var err error
		if email, err = p.Line(emailLabel); err != nil {
			return "", "", fmt.Errorf("read email: %w", err)
		}
		if p.Interactive() {
			terminal.ClearPreviousLines(len(emailLabel) + len(email))
		}
	}
	if password == "" {
		var err error
		if password, err = p.Secret(fmt.Sprintf("Password for %s: ", email)); err != nil {
			return "", "", fmt.Errorf("read password: %w", err)
		}
	}
	return email, password, nil
}

// askNewPassword prompts twice and requires both answers to match.
func askNewPassword(p *terminal.Prompter, label string) (string, error) {
	first, err := p.Secret(label)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	second, err := p.Secret("Repeat password: ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if first != second {
		return "", fmt.Errorf("passwords do not match")
	}
	return first, nil
}

// shortSessionWarning returns a message when the session just established
// has no more validity than the expiry margin, so the next command will
// discard it on recovery. It returns "" otherwise.
func shortSessionWarning(mgr *session.Manager) string {
	if !mgr.IsLoggedIn() || mgr.Recoverable() {
		return ""
	}
	return fmt.Sprintf("The credential is valid for %s, which is within the expiry margin of %s.\n"+
		"It works in this process only; the next command will discard it.\n"+
		"Lower expiry_margin in the config file to keep sessions this short.",
		formatRemaining(mgr.Remaining()), mgr.ExpiryMargin())
}

// warnShortSession prints shortSessionWarning when it applies.
func warnShortSession(mgr *session.Manager) {
	if msg := shortSessionWarning(mgr); msg != "" {
		pterm.Warning.Println(msg)
	}
}

// formatRemaining renders d with second precision, e.g. "1h59m30s".
func formatRemaining(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return d.Truncate(time.Second).String()
}

// getRandomLoginGreeting returns a random greeting phrase with the user's identifier
func getRandomLoginGreeting(identifier string) string {
	greetings := []string{
		"🎉 Welcome back, %s!",
		"✨ Great to see you, %s!",
		"🚀 You're all set, %s!",
		"💫 Successfully authenticated as %s",
		"🌟 Welcome aboard, %s!",
		"✅ Authentication complete! Hi %s!",
		"🎯 You're in, %s!",
		"🔓 Access granted! Welcome %s!",
	}
	return fmt.Sprintf(greetings[rand.Intn(len(greetings))], identifier)
}
