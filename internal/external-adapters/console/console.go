// Package console prints operator progress lines.
package console

import (
	"fmt"
	"io"
	"os"

	"github.com/gookit/color"
	"golang.org/x/term"
)

// color helpers
var (
	colArrow   = color.HEX("#FFEB3B")
	colDetail  = color.Gray
	colSuccess = color.Success
)

// Printer implements interfaces.Reporter on top of a writer
type Printer struct {
	out   io.Writer
	plain bool
}

// New creates a printer writing to out. plain disables colors.
func New(out io.Writer, plain bool) *Printer {
	return &Printer{out: out, plain: plain}
}

// NewStderr creates a printer on stderr, colored only when stderr is a terminal
func NewStderr() *Printer {
	return New(os.Stderr, !IsTerminal(os.Stderr))
}

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	//nolint:gosec // G115: file descriptors fit in int
	return term.IsTerminal(int(f.Fd()))
}

// Step prints the start of a pipeline action
func (p *Printer) Step(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.plain {
		p.println("==> " + msg)
		return
	}
	p.println(colArrow.Sprint("==>") + " " + color.Bold.Sprint(msg))
}

// Detail prints a secondary line under the current step
func (p *Printer) Detail(format string, args ...any) {
	msg := "    " + fmt.Sprintf(format, args...)
	if p.plain {
		p.println(msg)
		return
	}
	p.println(colDetail.Sprint(msg))
}

// Success prints a result line verbatim
func (p *Printer) Success(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.plain {
		p.println(msg)
		return
	}
	p.println(colSuccess.Sprint(msg))
}

// Writer returns the underlying writer, for progress bars sharing the stream
func (p *Printer) Writer() io.Writer {
	return p.out
}

func (p *Printer) println(s string) {
	_, _ = fmt.Fprintln(p.out, s)
}
