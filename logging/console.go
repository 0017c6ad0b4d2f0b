package logging

import (
	"io"
	"os"
	"sync/atomic"
)

// consoleSink is the terminal destination shared by every logger. Swapping
// it takes effect on loggers that already exist.
type consoleSink struct {
	w atomic.Pointer[io.Writer]
}

func (c *consoleSink) Write(p []byte) (int, error) {
	return (*c.w.Load()).Write(p)
}

func (c *consoleSink) set(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	c.w.Store(&w)
}

var console = newConsoleSink(os.Stderr)

func newConsoleSink(w io.Writer) *consoleSink {
	c := &consoleSink{}
	c.set(w)
	return c
}

// SetConsoleOutput redirects the console sink of every logger. A nil writer
// silences it.
func SetConsoleOutput(w io.Writer) {
	console.set(w)
}

// ConsoleOutput returns the console sink shared by all loggers.
func ConsoleOutput() io.Writer {
	return console
}
