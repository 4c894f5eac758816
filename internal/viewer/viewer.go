// Package viewer hands structure data to an external 3-D viewer.
//
// The viewer itself is an opaque program. This package decides what to give
// it: inline structure text is written to a temporary file whose file:// URL
// is passed along, while a remote structure is fetched first (so listeners
// can capture the text) and falls back to the remote URL when the fetch
// fails. Temporary files are released through Handle.Release or, for the
// common case, by a Session.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNoSource is returned when a Source carries neither text nor a URL.
var ErrNoSource = errors.New("viewer: no structure source")

const (
	fetchTimeout = 30 * time.Second
	maxFetchSize = 256 << 20
	tempPattern  = "drylab-*.pdb"
)

// Source is a structure to show. Text wins over URL when both are set.
type Source struct {
	Text string
	URL  string
}

// Handle is what the viewer is given. Temporary handles own a file that
// Release removes; direct handles point at a remote URL and own nothing.
type Handle struct {
	URL string

	path string
	once sync.Once
	err  error
}

// Temporary reports whether the handle owns a local resource.
func (h *Handle) Temporary() bool {
	return h != nil && h.path != ""
}

// Release frees the handle's resource. It is safe to call more than once and
// on a nil handle.
func (h *Handle) Release() error {
	if h == nil || h.path == "" {
		return nil
	}
	h.once.Do(func() {
		if err := os.Remove(h.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.err = fmt.Errorf("release %s: %w", h.path, err)
		}
	})
	return h.err
}

// Adapter turns a Source into a Handle.
type Adapter struct {
	// HTTPClient fetches remote structures. Nil uses a client with a 30s timeout.
	HTTPClient *http.Client
	// Dir holds temporary files. Empty uses os.TempDir.
	Dir string
	// OnFetched, when set, receives remote structure text after a successful
	// fetch and before the handle is built.
	OnFetched func(text string)
}

// Acquire builds a handle for src. A failed remote fetch is not an error:
// the handle then points at the remote URL directly.
func (a *Adapter) Acquire(ctx context.Context, src Source) (*Handle, error) {
	switch {
	case src.Text != "":
		return a.tempHandle(src.Text)
	case strings.TrimSpace(src.URL) != "":
		remote := strings.TrimSpace(src.URL)
		text, err := a.fetch(ctx, remote)
		if err != nil {
			log.Debug().Err(err).Str("url", remote).Msg("structure fetch failed, using direct url")
			return &Handle{URL: remote}, nil
		}
		if a.OnFetched != nil {
			a.OnFetched(text)
		}
		h, err := a.tempHandle(text)
		if err != nil {
			log.Warn().Err(err).Str("url", remote).Msg("could not stage structure, using direct url")
			return &Handle{URL: remote}, nil
		}
		return h, nil
	default:
		return nil, ErrNoSource
	}
}

func (a *Adapter) tempHandle(text string) (*Handle, error) {
	f, err := os.CreateTemp(a.Dir, tempPattern)
	if err != nil {
		return nil, fmt.Errorf("create temp structure: %w", err)
	}
	name := f.Name()
	if _, err := io.WriteString(f, text); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return nil, fmt.Errorf("write temp structure: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return nil, fmt.Errorf("write temp structure: %w", err)
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		abs = name
	}
	return &Handle{URL: fileURL(abs), path: name}, nil
}

func (a *Adapter) fetch(ctx context.Context, remote string) (string, error) {
	client := a.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remote, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s returned status %d", remote, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return "", fmt.Errorf("read structure: %w", err)
	}
	return string(data), nil
}

// FetchText retrieves a remote structure without building a handle. Used by
// job submission to embed a structure fetched by code.
func (a *Adapter) FetchText(ctx context.Context, remote string) (string, error) {
	text, err := a.fetch(ctx, remote)
	if err != nil {
		return "", err
	}
	if a.OnFetched != nil {
		a.OnFetched(text)
	}
	return text, nil
}

// RCSBURL is the public download URL of a structure code.
func RCSBURL(code string) string {
	return "https://files.rcsb.org/download/" + url.PathEscape(strings.ToUpper(strings.TrimSpace(code))) + ".pdb"
}

func fileURL(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	return u.String()
}
