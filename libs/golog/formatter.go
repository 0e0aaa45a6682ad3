package golog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const timeFormat = "2006-01-02T15:04:05-0700"

// Formatter serializes a log entry for output.
type Formatter interface {
	Format(e *Entry) []byte
}

// FormatterFunc is an adapter to allow plain functions to serve as formatters.
type FormatterFunc func(*Entry) []byte

func (f FormatterFunc) Format(e *Entry) []byte {
	return f(e)
}

// JSONFormatter returns a formatter that serializes entries as single-line JSON objects.
func JSONFormatter() Formatter {
	return FormatterFunc(func(e *Entry) []byte {
		js := make(map[string]interface{}, len(e.Ctx)/2+4)
		for i := 0; i+1 < len(e.Ctx); i += 2 {
			if k, ok := e.Ctx[i].(string); ok {
				js[k] = e.Ctx[i+1]
			} else {
				js["_error"] = fmt.Sprintf("%+v is not a string key", e.Ctx[i])
			}
		}
		js["t"] = e.Time.Format(timeFormat)
		js["level"] = e.Lvl.String()
		js["msg"] = e.Msg
		if e.Src != "" {
			js["src"] = e.Src
		}
		b, err := json.Marshal(js)
		if err != nil {
			b, _ = json.Marshal(map[string]string{"JSONFormatterError": err.Error()})
		}
		return append(b, '\n')
	})
}

// LogfmtFormatter returns a formatter that serializes entries as logfmt lines.
func LogfmtFormatter() Formatter {
	return FormatterFunc(func(e *Entry) []byte {
		buf := &bytes.Buffer{}
		buf.WriteString("t=")
		buf.WriteString(e.Time.Format(timeFormat))
		buf.WriteString(" lvl=")
		buf.WriteString(e.Lvl.String())
		buf.WriteString(" msg=")
		buf.WriteString(quote(e.Msg))
		if e.Src != "" {
			buf.WriteString(" src=")
			buf.WriteString(quote(e.Src))
		}
		for i := 0; i+1 < len(e.Ctx); i += 2 {
			buf.WriteByte(' ')
			if k, ok := e.Ctx[i].(string); ok {
				buf.WriteString(k)
			} else {
				buf.WriteString("_error")
			}
			buf.WriteByte('=')
			buf.WriteString(formatValue(e.Ctx[i+1]))
		}
		buf.WriteByte('\n')
		return buf.Bytes()
	})
}

func formatValue(v interface{}) string {
	switch vt := v.(type) {
	case string:
		return quote(vt)
	case error:
		return quote(vt.Error())
	case fmt.Stringer:
		return quote(vt.String())
	}
	return quote(fmt.Sprintf("%+v", v))
}

// quote only quotes values when required to keep the output readable.
func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n\"=") {
		return s
	}
	return strconv.Quote(s)
}
