package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/drylab-ai/drylab/internal/endpoint"
	"github.com/drylab-ai/drylab/internal/metrics"
)

// BackendParam is the query parameter carrying a per-request backend override.
const BackendParam = "backend"

// Options configure a Gateway.
type Options struct {
	Resolver endpoint.Resolver
	// HTTPClient performs backend calls. Nil uses a client with no timeout
	// beyond the transport defaults.
	HTTPClient *http.Client
	// UpstreamTimeout bounds every backend call, downloads included. Zero
	// leaves the transport default in place.
	UpstreamTimeout time.Duration
}

// Gateway forwards client requests to the compute backend.
type Gateway struct {
	resolver endpoint.Resolver
	client   *http.Client
}

// New builds a Gateway.
func New(opts Options) *Gateway {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.UpstreamTimeout}
	}
	resolver := opts.Resolver
	if resolver.Default == "" {
		resolver = endpoint.New("")
	}
	return &Gateway{resolver: resolver, client: client}
}

// Handler returns the full HTTP handler with middleware applied.
func (g *Gateway) Handler() http.Handler {
	return g.Router()
}

// Router registers every client-facing route.
func (g *Gateway) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(recoverer, requestID, accessLog, metrics.Middleware)

	router.HandleFunc("/healthz", health).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	// "list" must be registered ahead of the {id} routes.
	api.HandleFunc("/jobs/list", g.listJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs", g.submitJob).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}", g.getJob).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}/log", g.getLog).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}/tree", g.getTree).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}/file", g.getFile).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}/download", g.download).Methods(http.MethodGet)
	api.HandleFunc("/pdb", g.lookupStructure).Methods(http.MethodGet)

	return router
}

// backendFor resolves the backend base for one request.
func (g *Gateway) backendFor(r *http.Request) string {
	return g.resolver.Resolve(r.URL.Query().Get(BackendParam))
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeRaw(w, http.StatusOK, []byte(`{"status":"ok"}`))
}
