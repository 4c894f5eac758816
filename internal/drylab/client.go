package drylab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// Client talks to the drylab gateway API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	backend   string
}

const (
	defaultGateway   = "127.0.0.1:3000"
	defaultUserAgent = "drylab/0.1"
	requestTimeout   = 15 * time.Second
	maxNameAttempts  = 1000
)

// APIError is a non-success gateway response.
type APIError struct {
	Status  int
	Message string
	Path    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %s returned status %d: %s", e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("api %s returned status %d", e.Path, e.Status)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// NewClient builds a Client for the gateway at gatewayURL (host:port or URL).
func NewClient(gatewayURL string) (*Client, error) {
	base, err := parseBaseURL(gatewayURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:   base,
		http:      &http.Client{},
		userAgent: defaultUserAgent,
	}, nil
}

// WithBackend returns a copy of c that asks the gateway to use backend
// instead of its default. An empty value clears the override.
func (c *Client) WithBackend(backend string) *Client {
	clone := *c
	clone.backend = strings.TrimSpace(backend)
	return &clone
}

// Backend is the per-request backend override, if any.
func (c *Client) Backend() string {
	return c.backend
}

// ListJobs retrieves every job known to the backend. The gateway degrades
// backend failures to an empty list, so an error here means the gateway
// itself could not be reached.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var payload JobListResponse
	if err := c.getJSON(ctx, "/api/jobs/list", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Jobs, nil
}

// GetJob retrieves one job's metadata.
func (c *Client) GetJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.getJSON(ctx, jobPath(id, ""), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetLog retrieves the job's log payload.
func (c *Client) GetLog(ctx context.Context, id string) (LogResponse, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, jobPath(id, "/log"), nil, &raw); err != nil {
		return LogResponse{}, err
	}
	var payload LogResponse
	// Backends disagree on the log shape; anything that is not {"log": ...}
	// is still available through Raw.
	_ = json.Unmarshal(raw, &payload)
	payload.Raw = raw
	return payload, nil
}

// GetTree retrieves the job's full output listing in one call.
func (c *Client) GetTree(ctx context.Context, id string) (TreeResponse, error) {
	var payload TreeResponse
	if err := c.getJSON(ctx, jobPath(id, "/tree"), nil, &payload); err != nil {
		return TreeResponse{}, err
	}
	return payload, nil
}

// GetFile retrieves the preview content of one output file.
func (c *Client) GetFile(ctx context.Context, id, filePath string) (FilePreview, error) {
	var payload FilePreview
	if err := c.getJSON(ctx, jobPath(id, "/file"), url.Values{"path": {filePath}}, &payload); err != nil {
		return FilePreview{}, err
	}
	return payload, nil
}

// LookupStructure resolves a structure code through the backend and returns
// the payload untouched.
func (c *Client) LookupStructure(ctx context.Context, code string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/pdb", url.Values{"code": {code}}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// SubmitJob posts a job configuration.
func (c *Client) SubmitJob(ctx context.Context, req JobRequest) (SubmitResponse, error) {
	if req.ActiveSiteAtoms == nil {
		req.ActiveSiteAtoms = []ActiveSite{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("encode request: %w", err)
	}
	var payload SubmitResponse
	if err := c.doJSON(ctx, http.MethodPost, c.resolve("/api/jobs", nil), body, &payload); err != nil {
		return SubmitResponse{}, err
	}
	return payload, nil
}

// DownloadURL is the gateway URL that streams path of job id. An empty path
// selects the whole job.
func (c *Client) DownloadURL(id, filePath string) string {
	var query url.Values
	if filePath != "" {
		query = url.Values{"path": {filePath}}
	}
	return c.resolve(jobPath(id, "/download"), query).String()
}

// Download streams path of job id into dir and returns the written file.
// The file name comes from Content-Disposition when present.
func (c *Client) Download(ctx context.Context, id, filePath, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(id, filePath), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return "", apiError(resp, req.URL.Path)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".drylab-download-*")
	if err != nil {
		return "", fmt.Errorf("create download file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write download: %w", err)
	}
	dest, err := freeName(dir, downloadName(resp.Header.Get("Content-Disposition"), id, filePath))
	if err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("save download: %w", err)
	}
	return dest, nil
}

// freeName resolves name under dir, adding " (1)", " (2)"... before the
// extension when the file already exists so earlier downloads survive.
func freeName(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		stem, ext = name, ""
	}
	candidate := name
	for i := 1; i <= maxNameAttempts; i++ {
		// SecureJoin keeps the target under dir even if dir holds symlinks.
		dest, err := securejoin.SecureJoin(dir, candidate)
		if err != nil {
			return "", fmt.Errorf("resolve download path: %w", err)
		}
		if _, err := os.Lstat(dest); errors.Is(err, os.ErrNotExist) {
			return dest, nil
		} else if err != nil {
			return "", fmt.Errorf("check download path: %w", err)
		}
		candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, dir)
}

// downloadName picks a safe local file name for a download.
func downloadName(disposition, id, filePath string) string {
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name := filepath.Base(params["filename"]); name != "" && name != "." && name != "/" && name != ".." {
			return name
		}
	}
	if filePath != "" {
		if name := path.Base(filePath); name != "." && name != "/" && name != ".." {
			return name
		}
	}
	return filepath.Base(id) + ".zip"
}

func (c *Client) getJSON(ctx context.Context, p string, query url.Values, dest any) error {
	return c.doJSON(ctx, http.MethodGet, c.resolve(p, query), nil, dest)
}

func (c *Client) doJSON(ctx context.Context, method string, reqURL *url.URL, body []byte, dest any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return apiError(resp, reqURL.Path)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// resolve builds the gateway URL for p, carrying the backend override.
func (c *Client) resolve(p string, query url.Values) *url.URL {
	values := url.Values{}
	for k, v := range query {
		values[k] = v
	}
	if c.backend != "" {
		values.Set("backend", c.backend)
	}
	rel := &url.URL{Path: p, RawQuery: values.Encode()}
	if strings.Contains(p, "%") {
		rel.RawPath = p
		if unescaped, err := url.PathUnescape(p); err == nil {
			rel.Path = unescaped
		}
	}
	return c.baseURL.ResolveReference(rel)
}

func apiError(resp *http.Response, p string) error {
	apiErr := &APIError{Status: resp.StatusCode, Path: p}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err == nil {
		apiErr.Message = payload.Error
	}
	return apiErr
}

func jobPath(id, suffix string) string {
	return "/api/jobs/" + url.PathEscape(id) + suffix
}

func parseBaseURL(gatewayURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(gatewayURL)
	if trimmed == "" {
		trimmed = defaultGateway
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse gateway url %q: %w", gatewayURL, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
