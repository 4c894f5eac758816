package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/drylab-ai/drylab/internal/endpoint"
	"github.com/drylab-ai/drylab/internal/metrics"
)

// maxJSONBody caps how much of a JSON backend response is read. Backend file
// previews are themselves capped well below this.
const maxJSONBody = 64 << 20

// Normalized error messages. The client contract depends on these strings
// only loosely; the status code is what callers branch on.
const (
	msgBackendUnreachable = "Backend unreachable"
	msgUpstreamError      = "Upstream error"
	msgMissingCode        = "Missing code"
)

// operation describes one gateway operation for logging, metrics and the
// message used when the backend cannot be reached.
type operation struct {
	name        string
	unreachable string
}

var (
	opSubmit = operation{"submit", msgBackendUnreachable}
	opDetail = operation{"detail", "Failed to fetch job"}
	opLog    = operation{"log", "Failed to fetch log"}
	opTree   = operation{"tree", "Failed to fetch tree"}
	opFile   = operation{"file", "Failed to fetch file"}
	opLookup = operation{"lookup", msgBackendUnreachable}
	opList   = operation{"list", ""}
)

var emptyJobList = []byte(`{"jobs":[]}`)

// upstreamResult is a completed backend exchange.
type upstreamResult struct {
	status int
	body   json.RawMessage
}

func (u upstreamResult) ok() bool {
	return u.status >= 200 && u.status < 300
}

// listJobs degrades every failure to an empty collection so the client can
// always render a valid, if empty, list.
func (g *Gateway) listJobs(w http.ResponseWriter, r *http.Request) {
	target := endpoint.Join(g.backendFor(r), "/getting_jobs", nil)
	res, err := g.call(r, http.MethodGet, target, nil)
	logger := zerolog.Ctx(r.Context())
	switch {
	case err != nil:
		metrics.RecordUpstreamUnreachable(opList.name)
		logger.Warn().Err(err).Str("target", target).Msg("job list unavailable, returning empty list")
		writeRaw(w, http.StatusOK, emptyJobList)
	case !res.ok():
		metrics.RecordUpstreamStatus(opList.name)
		logger.Warn().Int("status", res.status).Str("target", target).Msg("job list rejected, returning empty list")
		writeRaw(w, http.StatusOK, emptyJobList)
	default:
		writeRaw(w, http.StatusOK, res.body)
	}
}

// submitJob forwards the client's job configuration verbatim. No field is
// validated here; the backend owns that.
func (g *Gateway) submitJob(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil || !json.Valid(body) {
		body = []byte("{}")
	}
	target := endpoint.Join(g.backendFor(r), "/jobs", nil)
	g.relay(w, r, opSubmit, http.MethodPost, target, body)
}

func (g *Gateway) getJob(w http.ResponseWriter, r *http.Request) {
	g.relayJob(w, r, opDetail, "", nil)
}

func (g *Gateway) getLog(w http.ResponseWriter, r *http.Request) {
	g.relayJob(w, r, opLog, "/log", nil)
}

func (g *Gateway) getTree(w http.ResponseWriter, r *http.Request) {
	g.relayJob(w, r, opTree, "/tree", nil)
}

func (g *Gateway) getFile(w http.ResponseWriter, r *http.Request) {
	query := url.Values{}
	query.Set("path", r.URL.Query().Get("path"))
	g.relayJob(w, r, opFile, "/file", query)
}

// lookupStructure fails fast on a missing code without contacting the backend.
func (g *Gateway) lookupStructure(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		writeError(w, http.StatusBadRequest, msgMissingCode)
		return
	}
	target := endpoint.Join(g.backendFor(r), "/pdb", url.Values{"code": {code}})
	g.relay(w, r, opLookup, http.MethodGet, target, nil)
}

func (g *Gateway) relayJob(w http.ResponseWriter, r *http.Request, op operation, suffix string, query url.Values) {
	id := mux.Vars(r)["id"]
	target := endpoint.Join(g.backendFor(r), endpoint.JobPath(id, suffix), query)
	g.relay(w, r, op, http.MethodGet, target, nil)
}

// relay applies the shared failure classification: unreachable or malformed
// becomes 502, a backend non-success status is propagated as-is.
func (g *Gateway) relay(w http.ResponseWriter, r *http.Request, op operation, method, target string, body []byte) {
	logger := zerolog.Ctx(r.Context())
	res, err := g.call(r, method, target, body)
	if err != nil {
		metrics.RecordUpstreamUnreachable(op.name)
		logger.Warn().Err(err).Str("op", op.name).Str("target", target).Msg("backend unreachable")
		writeError(w, http.StatusBadGateway, op.unreachable)
		return
	}
	if !res.ok() {
		metrics.RecordUpstreamStatus(op.name)
		logger.Info().Int("status", res.status).Str("op", op.name).Str("target", target).Msg("backend returned error status")
		writeError(w, res.status, msgUpstreamError)
		return
	}
	writeRaw(w, res.status, res.body)
}

// call performs one backend exchange. A returned error means the backend
// could not be reached or answered a success status with a body that is not
// JSON; a non-success status is reported through upstreamResult instead.
func (g *Gateway) call(r *http.Request, method, target string, body []byte) (upstreamResult, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(r.Context(), method, target, reader)
	if err != nil {
		return upstreamResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return upstreamResult{}, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	res := upstreamResult{status: resp.StatusCode}
	if !res.ok() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxJSONBody))
		return res, nil
	}
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBody))
	if err != nil {
		return upstreamResult{}, fmt.Errorf("read response: %w", err)
	}
	if !json.Valid(payload) {
		return upstreamResult{}, fmt.Errorf("decode response: backend returned malformed JSON")
	}
	res.body = payload
	return res, nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	payload, _ := json.Marshal(map[string]string{"error": message})
	writeRaw(w, status, payload)
}

func writeRaw(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
