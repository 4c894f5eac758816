package ui

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/drylab-ai/drylab/internal/drylab"
)

// downloadSink saves tree downloads under the configured directory and
// queues a status-bar notice for each outcome.
type downloadSink struct {
	client *drylab.Client
	dir    string

	mu      sync.Mutex
	notices []string
}

// Download implements tree.Downloader.
func (s *downloadSink) Download(ctx context.Context, jobID, path string) error {
	dest, err := s.client.Download(ctx, jobID, path, s.dir)
	if err != nil {
		s.push("Download failed: " + downloadLabel(jobID, path))
		return err
	}
	log.Info().Str("job", jobID).Str("path", path).Str("dest", dest).Msg("download saved")
	s.push("Saved " + truncateMiddle(dest, 60))
	return nil
}

func (s *downloadSink) push(notice string) {
	s.mu.Lock()
	s.notices = append(s.notices, notice)
	s.mu.Unlock()
}

// drain returns and clears the queued notices.
func (s *downloadSink) drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

func downloadLabel(jobID, path string) string {
	if path == "" {
		return jobID
	}
	return truncateMiddle(path, 60)
}
