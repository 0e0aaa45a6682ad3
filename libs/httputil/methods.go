package httputil

import (
	"context"
	"net/http"
	"sort"
	"strings"
)

// HTTP methods
const (
	Delete  = "DELETE"
	Get     = "GET"
	Head    = "HEAD"
	Options = "OPTIONS"
	Patch   = "PATCH"
	Post    = "POST"
	Put     = "PUT"
)

type supportedMethods struct {
	methods []string
	handler ContextHandler
}

// SupportedMethods wraps an HTTP handler, and before a request is
// passed to the handler the method is checked against the list provided.
// If it does not match one of the expected methods then StatusMethodNotAllowed
// status is returned along with a list of allowed methods in the "Allow"
// HTTP header.
func SupportedMethods(h ContextHandler, methods ...string) ContextHandler {
	sort.Strings(methods)
	return &supportedMethods{
		methods: methods,
		handler: h,
	}
}

func (sm *supportedMethods) ServeHTTP(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	for _, m := range sm.methods {
		if r.Method == m {
			sm.handler.ServeHTTP(ctx, w, r)
			return
		}
	}

	w.Header().Set("Allow", strings.Join(sm.methods, ", "))
	if r.Method == Options {
		w.WriteHeader(http.StatusOK)
	} else {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
