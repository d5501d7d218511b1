// Package cli holds terminal presentation for escrowctl: the transaction
// step bar, colored status lines, spinners, tables and machine output.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/flexcrow/escrowctl/internal/app/domain/transaction"
)

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
	ColorBold   = "\033[1m"
)

// StepBar renders the progress of one transaction as a row of stages.
// Completed stages are green, the current one is bold cyan and the rest
// gray. Terminal statuses paint the whole bar in the status color.
type StepBar struct {
	Type     transaction.Type
	Step     transaction.Step
	Status   transaction.Status
	colorize bool
}

// NewStepBar builds a bar for tx.
func NewStepBar(tx transaction.Transaction) *StepBar {
	return &StepBar{
		Type:     tx.Type,
		Step:     transaction.DeriveStep(tx),
		Status:   tx.Status,
		colorize: IsTerminal(os.Stdout),
	}
}

// DisableColor disables colored output
func (b *StepBar) DisableColor() *StepBar {
	b.colorize = false
	return b
}

// String renders e.g. "● Offer ─ ● Payment ─ ◉ Shipping ─ ○ Transit ─ ...".
func (b *StepBar) String() string {
	stages := transaction.Stages(b.Type)
	parts := make([]string, 0, len(stages))
	for _, s := range stages {
		mark, color := "○", ColorGray
		switch {
		case b.Status.Terminal():
			mark, color = "✗", ColorRed
			if b.Status == transaction.StatusDisputed {
				color = ColorPurple
			}
		case b.Step == transaction.StepCompleted || (b.Step != transaction.StepNone && s < b.Step):
			mark, color = "●", ColorGreen
		case s == b.Step:
			mark, color = "◉", ColorBold+ColorCyan
		}
		cell := mark + " " + s.Stage()
		if b.colorize {
			cell = color + cell + ColorReset
		}
		parts = append(parts, cell)
	}
	bar := strings.Join(parts, " ─ ")
	if b.Status.Terminal() {
		bar += "  (" + b.Status.Label() + ")"
	}
	return bar
}

// Percent is the share of stages reached, 0 to 100.
func (b *StepBar) Percent() float64 {
	stages := transaction.Stages(b.Type)
	if b.Step == transaction.StepNone || len(stages) == 0 {
		return 0
	}
	for i, s := range stages {
		if s == b.Step {
			return float64(i+1) / float64(len(stages)) * 100
		}
	}
	return 0
}

// Spinner represents a loading spinner
type Spinner struct {
	frames   []string
	current  int
	prefix   string
	suffix   string
	mu       sync.Mutex
	writer   io.Writer
	active   bool
	colorize bool
	done     chan struct{}
}

// NewSpinner creates a spinner on stderr. It stays silent when stderr is
// not a terminal.
func NewSpinner(prefix string) *Spinner {
	return &Spinner{
		frames:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		prefix:   prefix,
		writer:   os.Stderr,
		colorize: IsTerminal(os.Stderr),
		done:     make(chan struct{}),
	}
}

// SetWriter sets the output writer
func (s *Spinner) SetWriter(w io.Writer) *Spinner {
	s.writer = w
	return s
}

// SetSuffix sets the suffix text
func (s *Spinner) SetSuffix(suffix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suffix = suffix
}

// Start starts the spinner
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.active || !s.colorize {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				if !s.active {
					s.mu.Unlock()
					return
				}
				s.render()
				s.current = (s.current + 1) % len(s.frames)
				s.mu.Unlock()
			case <-s.done:
				return
			}
		}
	}()
}

// Stop stops the spinner
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}

	s.active = false
	close(s.done)

	// Clear the line
	fmt.Fprint(s.writer, "\r"+strings.Repeat(" ", 80)+"\r")
}

func (s *Spinner) render() {
	frame := ColorCyan + s.frames[s.current] + ColorReset
	output := fmt.Sprintf("\r%s %s", frame, s.prefix)
	if s.suffix != "" {
		output += " " + s.suffix
	}
	fmt.Fprint(s.writer, output)
}

// Colorize returns a colored string
func Colorize(text string, color string) string {
	if !IsTerminal(os.Stdout) {
		return text
	}
	return color + text + ColorReset
}

// StatusColor picks the color for a transaction label.
func StatusColor(s transaction.Status) string {
	switch s {
	case transaction.StatusCompleted:
		return ColorGreen
	case transaction.StatusPending:
		return ColorYellow
	case transaction.StatusProcessing:
		return ColorCyan
	case transaction.StatusDisputed:
		return ColorPurple
	}
	return ColorRed
}

// Success prints a success message
func Success(w io.Writer, message string) {
	mark(w, "✓", ColorGreen, message)
}

// Error prints an error message
func Error(w io.Writer, message string) {
	mark(w, "✗", ColorRed, message)
}

// Warning prints a warning message
func Warning(w io.Writer, message string) {
	mark(w, "⚠", ColorYellow, message)
}

// Info prints an info message
func Info(w io.Writer, message string) {
	mark(w, "ℹ", ColorBlue, message)
}

func mark(w io.Writer, symbol, color, message string) {
	if IsTerminal(w) {
		fmt.Fprintf(w, "%s%s%s %s\n", color, symbol, ColorReset, message)
		return
	}
	fmt.Fprintf(w, "%s %s\n", symbol, message)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ReadSecret prompts on w and reads a line from in without echo when in is
// a terminal.
func ReadSecret(w io.Writer, in *os.File, prompt string) (string, error) {
	fmt.Fprint(w, prompt)
	if term.IsTerminal(int(in.Fd())) {
		b, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(w)
		return string(b), err
	}
	var line string
	_, err := fmt.Fscanln(in, &line)
	return line, err
}
