// Package terminal provides utilities for interactive prompts such as reading
// a line or a secret without echo.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"atomicgo.dev/cursor"
	"golang.org/x/term"
)

// ErrEmptyAnswer is returned when the user enters nothing.
var ErrEmptyAnswer = errors.New("no value entered")

// Prompter asks questions on out and reads answers from in.
// Secrets are read without echo when in is a terminal.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
}

// NewPrompter prompts on the given terminal streams.
func NewPrompter(in *os.File, out io.Writer) *Prompter {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		fd = -1
	}
	return &Prompter{in: bufio.NewReader(in), out: out, fd: fd}
}

// NewPipePrompter reads answers from a non-terminal reader, one per line.
func NewPipePrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, fd: -1}
}

// Interactive reports whether input comes from a terminal.
func (p *Prompter) Interactive() bool { return p.fd >= 0 }

// Line prints label and reads one trimmed line.
func (p *Prompter) Line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	s, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyAnswer
	}
	return s, nil
}

// Secret prints label and reads a value without echoing it.
func (p *Prompter) Secret(label string) (string, error) {
	if p.fd < 0 {
		return p.Line(label)
	}
	fmt.Fprint(p.out, label)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", ErrEmptyAnswer
	}
	return string(b), nil
}

// ClearPreviousLines clears an answered prompt from the terminal. It works out
// how many lines the text used at the current terminal width, clears the line
// the cursor moved to after Enter, and leaves the cursor where the prompt began.
func ClearPreviousLines(textLength int) {
	termWidth := 80
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		termWidth = width
	}

	totalLines := int(math.Ceil(float64(textLength) / float64(termWidth)))
	if totalLines < 1 {
		totalLines = 1
	}
	cursor.ClearLine()
	cursor.ClearLinesUp(totalLines)
	cursor.StartOfLine()
}
