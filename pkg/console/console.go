// Package console prints short coloured status lines for people running
// the migrator by hand. Structured logs still go through slog.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Color is one of the few colours the console prints in.
type Color int

const (
	Plain Color = iota
	Green
	Yellow
	Red
	Blue
	Cyan
)

// ColorProfile honours NO_COLOR and otherwise detects the terminal.
func ColorProfile() termenv.Profile {
	if os.Getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}
	return termenv.EnvColorProfile()
}

// Console writes operator-facing lines.
type Console struct {
	mu  sync.Mutex
	out *termenv.Output
}

// New colours output only when w is a terminal.
func New(w io.Writer) *Console {
	profile := termenv.Ascii
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		profile = ColorProfile()
	}
	return NewWithProfile(w, profile)
}

// NewWithProfile creates a Console rendering with profile.
func NewWithProfile(w io.Writer, profile termenv.Profile) *Console {
	if w == nil {
		w = os.Stderr
	}
	return &Console{
		out: termenv.NewOutput(w, termenv.WithProfile(profile), termenv.WithTTY(true)),
	}
}

var (
	defaultOnce    sync.Once
	defaultConsole *Console
)

// Default writes to stderr.
func Default() *Console {
	defaultOnce.Do(func() { defaultConsole = New(os.Stderr) })
	return defaultConsole
}

// Secho prints msg on its own line in the given colour.
func (c *Console) Secho(msg string, color Color) {
	style := c.out.String(msg)
	switch color {
	case Green:
		style = style.Foreground(termenv.ANSIGreen)
	case Yellow:
		style = style.Foreground(termenv.ANSIYellow)
	case Red:
		style = style.Foreground(termenv.ANSIRed).Bold()
	case Blue:
		style = style.Foreground(termenv.ANSIBlue)
	case Cyan:
		style = style.Foreground(termenv.ANSICyan)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, style.String())
}

func (c *Console) Sechof(color Color, format string, args ...any) {
	c.Secho(fmt.Sprintf(format, args...), color)
}

// Check prints a pass or fail marker followed by msg.
func (c *Console) Check(ok bool, msg string) {
	if ok {
		c.Secho("✓ "+msg, Green)
		return
	}
	c.Secho("✗ "+msg, Red)
}
