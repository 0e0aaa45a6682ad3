package golog

import (
	"io"
	"os"
)

// DefaultHandler writes logfmt to stdout with WARN and above going to stderr.
var DefaultHandler = IOHandler(os.Stdout, os.Stderr, LogfmtFormatter())

// HandlerFunc is an adapter to allow plain functions to serve as log handlers.
type HandlerFunc func(e *Entry) error

func (h HandlerFunc) Log(e *Entry) error {
	return h(e)
}

// IOHandler returns a handler that formats entries and writes them to out,
// or to err for entries at WARN or above.
func IOHandler(out, err io.Writer, fmtr Formatter) Handler {
	return &ioHandler{out: out, err: err, fmtr: fmtr}
}

type ioHandler struct {
	out, err io.Writer
	fmtr     Formatter
}

func (h *ioHandler) Log(e *Entry) error {
	m := h.fmtr.Format(e)
	if e.Lvl <= WARN {
		_, err := h.err.Write(m)
		return err
	}
	_, err := h.out.Write(m)
	return err
}
