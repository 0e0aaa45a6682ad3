package httputil

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sprucehealth/payflow/libs/golog"
)

var hostname string

func init() {
	var err error
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
}

type requestIDContextKey struct{}

var lastRequestID uint64

func init() {
	lastRequestID = uint64(time.Now().UnixNano())
}

// RequestID returns the request ID for an HTTP request. RequestIDHandler
// must be used to guarantee that a request ID exists, otherwise this
// returns 0.
func RequestID(ctx context.Context) uint64 {
	reqID, _ := ctx.Value(requestIDContextKey{}).(uint64)
	return reqID
}

// CtxWithRequestID adds a request ID to the context
func CtxWithRequestID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDHandler wraps a handler to provide generation of a unique
// request ID per request. The ID is available through RequestID(ctx).
func RequestIDHandler(h ContextHandler) ContextHandler {
	return ContextHandlerFunc(func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		id := atomic.AddUint64(&lastRequestID, 1)
		w.Header().Set("S-Request-ID", formatID(id))
		h.ServeHTTP(CtxWithRequestID(ctx, id), w, r)
	})
}

func formatID(id uint64) string {
	const digits = "0123456789abcdef"
	b := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		b[i] = digits[id&0xf]
		id >>= 4
	}
	return string(b)
}

// RequestEvent is a request/response log event
type RequestEvent struct {
	Timestamp       time.Time
	ResponseTime    time.Duration
	ServerHostname  string
	StatusCode      int
	ResponseHeaders http.Header
	Request         *http.Request
	// URL is provided separate from the request as it is copied before calling sub
	// handlers as they might change the URL (e.g. http.StripPrefix)
	URL *url.URL
	// RemoteAddr is a normalized version of r.RemoteAddr without any port number
	RemoteAddr string
	// Panic and StackTrace are set if a sub handler panics
	Panic      interface{}
	StackTrace []byte
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *loggingResponseWriter) WriteHeader(status int) {
	w.statusCode = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *loggingResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// LoggingHandler wraps a handler to provide request/response logging. The
// alog function receives one event per request after the response is written.
func LoggingHandler(h ContextHandler, behindProxy bool, alog func(context.Context, *RequestEvent)) ContextHandler {
	return ContextHandlerFunc(func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		logrw := &loggingResponseWriter{ResponseWriter: w}
		ev := &RequestEvent{
			Timestamp:      time.Now(),
			Request:        r,
			ServerHostname: hostname,
			RemoteAddr:     RemoteAddrFromRequest(r, behindProxy),
		}
		// Copy the URL as sub handlers may mutate it
		u := *r.URL
		ev.URL = &u
		defer func() {
			if p := recover(); p != nil {
				ev.Panic = p
				buf := make([]byte, 1<<16)
				ev.StackTrace = buf[:runtime.Stack(buf, false)]
				if !logrw.wroteHeader {
					http.Error(logrw, "Internal server error", http.StatusInternalServerError)
				}
			}
			ev.ResponseTime = time.Since(ev.Timestamp)
			ev.StatusCode = logrw.statusCode
			ev.ResponseHeaders = logrw.Header()
			alog(ctx, ev)
		}()
		h.ServeHTTP(ctx, logrw, r)
	})
}

// LogRequestEvent writes a request event to the default logger. It can be
// used as the alog argument for LoggingHandler.
func LogRequestEvent(ctx context.Context, ev *RequestEvent) {
	log := golog.Context(
		"Method", ev.Request.Method,
		"URL", ev.URL.String(),
		"UserAgent", ev.Request.UserAgent(),
		"RequestID", RequestID(ctx),
		"RemoteAddr", ev.RemoteAddr,
		"StatusCode", ev.StatusCode,
		"ResponseTime", ev.ResponseTime.String(),
	)
	if ev.Panic != nil {
		log.Criticalf("http: panic: %v\n%s", ev.Panic, ev.StackTrace)
	} else {
		log.Infof("apirequest")
	}
}
