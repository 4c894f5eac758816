package gateway

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/drylab-ai/drylab/internal/endpoint"
	"github.com/drylab-ai/drylab/internal/metrics"
)

const msgDownloadFailed = "Failed to download"

// hopHeaders are connection-scoped and never relayed.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// download streams a job artifact from the backend without buffering it.
// Status, headers and body are relayed as the backend produced them,
// including non-success responses. Without a path the backend returns its
// bundle of all job outputs.
func (g *Gateway) download(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var query url.Values
	if path := r.URL.Query().Get("path"); path != "" {
		query = url.Values{"path": {path}}
	}
	target := endpoint.Join(g.backendFor(r), endpoint.JobPath(id, "/download"), query)
	logger := zerolog.Ctx(r.Context())

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		logger.Error().Err(err).Str("target", target).Msg("build download request")
		writeError(w, http.StatusBadGateway, msgDownloadFailed)
		return
	}
	req.Header.Set("Cache-Control", "no-store")
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}
	// An explicit Accept-Encoding stops the transport from negotiating gzip
	// and decoding it, so encoded bodies reach the client byte for byte.
	if ae := r.Header.Get("Accept-Encoding"); ae != "" {
		req.Header.Set("Accept-Encoding", ae)
	} else {
		req.Header.Set("Accept-Encoding", "identity")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		metrics.RecordUpstreamUnreachable("download")
		logger.Warn().Err(err).Str("target", target).Msg("download backend unreachable")
		writeError(w, http.StatusBadGateway, msgDownloadFailed)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	copyHeaders(w.Header(), resp.Header)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(resp.StatusCode)

	n, err := io.Copy(flushWriter{w: w, rc: http.NewResponseController(w)}, resp.Body)
	metrics.RecordDownloadBytes(n)
	if err != nil && !errors.Is(err, r.Context().Err()) {
		// Headers are gone already; all that is left is to note the truncation.
		logger.Warn().Err(err).Int64("bytes", n).Str("target", target).Msg("download interrupted")
		return
	}
	logger.Debug().Int64("bytes", n).Int("status", resp.StatusCode).Msg("download relayed")
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		if isHopHeader(key) {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

func isHopHeader(key string) bool {
	for _, h := range hopHeaders {
		if strings.EqualFold(h, key) {
			return true
		}
	}
	return false
}

// flushWriter pushes each chunk to the client as soon as it is written.
type flushWriter struct {
	w  io.Writer
	rc *http.ResponseController
}

func (f flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if err != nil {
		return n, err
	}
	if ferr := f.rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
		return n, ferr
	}
	return n, nil
}
