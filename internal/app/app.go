package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/drylab-ai/drylab/internal/config"
	"github.com/drylab-ai/drylab/internal/drylab"
	"github.com/drylab-ai/drylab/internal/endpoint"
	"github.com/drylab-ai/drylab/internal/gateway"
	"github.com/drylab-ai/drylab/internal/prefs"
	"github.com/drylab-ai/drylab/internal/state"
	"github.com/drylab-ai/drylab/internal/ui"
	"github.com/drylab-ai/drylab/internal/viewer"
)

// Options configure the drylab browser.
type Options struct {
	Config    config.Config
	PrefsPath string // empty uses default ~/.config/drylab/prefs.toml
	// Backend overrides the gateway's default backend for this session.
	Backend string
	// JobID opens the browser directly on one job.
	JobID string
}

// Serve runs the gateway until the context is cancelled.
func Serve(ctx context.Context, cfg config.Config) error {
	gw := gateway.New(gateway.Options{
		Resolver:        endpoint.New(cfg.BackendURL),
		UpstreamTimeout: cfg.UpstreamTimeout,
	})
	return gw.Serve(ctx, cfg.Listen)
}

// NewClient builds a gateway client carrying the optional backend override.
func NewClient(cfg config.Config, backend string) (*drylab.Client, error) {
	client, err := drylab.NewClient(cfg.GatewayURL)
	if err != nil {
		return nil, fmt.Errorf("init drylab client: %w", err)
	}
	return client.WithBackend(backend), nil
}

// Browse boots the drylab TUI until the context is cancelled or the user quits.
func Browse(ctx context.Context, opts Options) error {
	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		return fmt.Errorf("load prefs: %w", err)
	}

	client, err := NewClient(opts.Config, opts.Backend)
	if err != nil {
		return err
	}

	jobs := &state.JobList{}

	// Do initial refresh to populate the list before the UI starts
	refresh(ctx, jobs, client)
	StartPoller(ctx, jobs, client, opts.Config.PollInterval)

	session := viewer.NewSession(&viewer.Adapter{}, viewer.CommandLauncher{Command: opts.Config.ViewerCommand})
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn().Err(err).Msg("release structure")
		}
	}()

	return ui.Run(ui.Options{
		Context:   ctx,
		Client:    client,
		Jobs:      jobs,
		Config:    opts.Config,
		Prefs:     userPrefs,
		PrefsPath: opts.PrefsPath,
		Viewer:    session,
		JobID:     opts.JobID,
	})
}
