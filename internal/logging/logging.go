// Package logging writes user-facing console output.
//
// Messages carry a semantic prefix (✓, ✗, ⚠) that is coloured when the
// terminal supports it. Colour is disabled when NO_COLOR is set or the
// output is not a terminal. Debug messages are shown only with --debug.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	success = color.New(color.FgGreen)
	failure = color.New(color.FgRed)
	warning = color.New(color.FgYellow)
	debug   = color.New(color.FgCyan)
	muted   = color.New(color.Faint)
)

// Logger writes console messages. Out receives progress and results, Err
// receives warnings and errors.
type Logger struct {
	Out   io.Writer
	Err   io.Writer
	Debug bool
}

// New returns a Logger writing to out and errOut.
func New(out, errOut io.Writer, debug bool) Logger {
	return Logger{Out: out, Err: errOut, Debug: debug}
}

// Infof writes a plain line.
func (l Logger) Infof(msg string, args ...any) {
	l.write(l.Out, nil, "", msg, args)
}

// Successf writes a line prefixed with a check mark.
func (l Logger) Successf(msg string, args ...any) {
	l.write(l.Out, success, "✓ ", msg, args)
}

// Failf writes a line prefixed with a cross.
func (l Logger) Failf(msg string, args ...any) {
	l.write(l.Err, failure, "✗ ", msg, args)
}

// Warnf writes a warning line.
func (l Logger) Warnf(msg string, args ...any) {
	l.write(l.Err, warning, "⚠  ", msg, args)
}

// Errorf writes an error line.
func (l Logger) Errorf(msg string, args ...any) {
	l.write(l.Err, failure, "[error] ", msg, args)
}

// Debugf writes a line only in debug mode.
func (l Logger) Debugf(msg string, args ...any) {
	if l.Debug {
		l.write(l.Err, debug, "[debug] ", msg, args)
	}
}

// Muted returns s de-emphasized.
func Muted(s string) string {
	if noColor() {
		return s
	}
	return muted.Sprint(s)
}

func (l Logger) write(w io.Writer, c *color.Color, prefix, msg string, args []any) {
	if w == nil {
		return
	}
	if c != nil && prefix != "" && !noColor() {
		prefix = c.Sprint(prefix)
	}
	_, _ = fmt.Fprintf(w, prefix+msg+"\n", args...)
}

// noColor reports whether colour output is disabled.
func noColor() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return true
	}
	return color.NoColor
}
