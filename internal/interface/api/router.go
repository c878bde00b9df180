package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

type RouterOptions struct {
	// Prefix is prepended to every API route, e.g. "/api".
	Prefix      string
	CORSOrigins []string
	Metrics     *Metrics
}

// NewRouter wires the API, health and metrics routes behind the request
// logger and CORS middleware.
func NewRouter(h *IPAMHandler, opts RouterOptions) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = NotFoundHandler()
	r.MethodNotAllowedHandler = MethodNotAllowedHandler()

	r.HandleFunc("/health", HealthHandler).Methods(http.MethodGet)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)
		r.Use(opts.Metrics.Middleware)
	}

	// Prefixed paths are registered on r itself so a method mismatch reaches
	// MethodNotAllowedHandler.
	prefix := strings.Trim(opts.Prefix, "/")
	if prefix != "" {
		prefix = "/" + prefix
	}
	h.Register(r, prefix)

	return RequestLogger(CORS(opts.CORSOrigins, r))
}
