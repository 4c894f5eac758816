package viewer

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Launcher opens a handle URL in the external viewer.
type Launcher interface {
	Launch(ctx context.Context, url string) error
}

// CommandLauncher runs Command with the URL appended as the last argument.
// An empty Command does nothing.
type CommandLauncher struct {
	Command string
}

// Launch starts the viewer and returns without waiting for it to exit. The
// viewer outlives ctx.
func (c CommandLauncher) Launch(_ context.Context, url string) error {
	args := strings.Fields(c.Command)
	if len(args) == 0 {
		return nil
	}
	cmd := exec.Command(args[0], append(args[1:], url)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start viewer %q: %w", args[0], err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Debug().Err(err).Str("viewer", args[0]).Msg("viewer exited")
		}
	}()
	return nil
}

// Session owns at most one handle at a time. Show releases the previous
// handle before acquiring the next; Close releases the current one. The UI
// closes the session when the preview closes, the job changes, or the
// program exits.
type Session struct {
	adapter  *Adapter
	launcher Launcher

	mu      sync.Mutex
	current *Handle
}

// NewSession builds a Session. A nil launcher only stages handles.
func NewSession(adapter *Adapter, launcher Launcher) *Session {
	if adapter == nil {
		adapter = &Adapter{}
	}
	return &Session{adapter: adapter, launcher: launcher}
}

// Show stages src and opens it in the viewer.
func (s *Session) Show(ctx context.Context, src Source) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.releaseLocked(); err != nil {
		log.Warn().Err(err).Msg("release previous structure")
	}
	h, err := s.adapter.Acquire(ctx, src)
	if err != nil {
		return nil, err
	}
	s.current = h
	if s.launcher != nil {
		if err := s.launcher.Launch(ctx, h.URL); err != nil {
			return h, err
		}
	}
	return h, nil
}

// Current is the handle last shown, or nil.
func (s *Session) Current() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close releases the current handle.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked()
}

func (s *Session) releaseLocked() error {
	h := s.current
	s.current = nil
	return h.Release()
}
