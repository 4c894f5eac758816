package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/drylab-ai/drylab/internal/app"
	"github.com/drylab-ai/drylab/internal/config"
	"github.com/drylab-ai/drylab/internal/drylab"
	"github.com/drylab-ai/drylab/internal/logging"
	"github.com/drylab-ai/drylab/internal/logtail"
	"github.com/drylab-ai/drylab/internal/viewer"
)

func rootCmd() *cli.Command {
	return &cli.Command{
		Name:    "drylab",
		Version: version,
		Usage:   "Submit structure-design jobs and browse their artifacts through the drylab gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file",
				Sources: cli.EnvVars("DRYLAB_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Backend base URL the gateway should use for this session's requests",
			},
			&cli.StringFlag{
				Name:    "gateway",
				Usage:   "Gateway URL used by the browser and client commands",
				Sources: cli.EnvVars("DRYLAB_GATEWAY_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("DRYLAB_LOG_LEVEL"),
			},
		},
		Action: browseAction,
		Commands: []*cli.Command{
			serveCmd(),
			browseCmd(),
			submitCmd(),
			downloadCmd(),
			logCmd(),
			lookupCmd(),
		},
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Usage:   "Address the gateway binds to",
				Sources: cli.EnvVars("DRYLAB_LISTEN"),
			},
			&cli.StringFlag{
				Name:    "backend-url",
				Usage:   "Default compute backend",
				Sources: cli.EnvVars("BACKEND_URL"),
			},
			&cli.DurationFlag{
				Name:  "upstream-timeout",
				Usage: "Bound on each backend call (0 = none)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if v := strings.TrimSpace(cmd.String("listen")); v != "" {
				cfg.Listen = v
			}
			if v := strings.TrimSpace(cmd.String("backend-url")); v != "" {
				cfg.BackendURL = v
			}
			if cmd.IsSet("upstream-timeout") {
				cfg.UpstreamTimeout = cmd.Duration("upstream-timeout")
			}

			closer, err := logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
			if err != nil {
				return err
			}
			defer closer.Close()

			log.Info().Str("listen", cfg.Listen).Str("backend", cfg.BackendURL).Msg("gateway starting")
			return app.Serve(ctx, cfg)
		},
	}
}

func browseCmd() *cli.Command {
	return &cli.Command{
		Name:  "browse",
		Usage: "Browse jobs in the terminal (default)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "job",
				Usage: "Open directly on this job",
			},
		},
		Action: browseAction,
	}
}

func browseAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// The browser owns the terminal, so logs always go to a file.
	closer, err := logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.BrowseLogPath()})
	if err != nil {
		return err
	}
	defer closer.Close()

	var jobID string
	if cmd.Name == "browse" {
		jobID = cmd.String("job")
	}
	return app.Browse(ctx, app.Options{
		Config:  cfg,
		Backend: cmd.String("backend"),
		JobID:   jobID,
	})
}

func submitCmd() *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "Submit a job from a TOML job file and/or flags",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "TOML job file"},
			&cli.StringFlag{Name: "name", Usage: "Job name"},
			&cli.StringFlag{Name: "type", Usage: "Job type"},
			&cli.StringFlag{Name: "ligand", Usage: "Ligand code"},
			&cli.StringFlag{Name: "contigs", Usage: "Contig specification"},
			&cli.StringFlag{Name: "pdb", Usage: "Input structure file"},
			&cli.StringFlag{Name: "pdb-code", Usage: "Fetch the input structure by code"},
			&cli.StringSliceFlag{Name: "site", Usage: "Active site as RESIDUE:ATOMS (repeatable)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, client, err := clientSetup(cmd)
			if err != nil {
				return err
			}

			var req drylab.JobRequest
			if path := cmd.String("file"); path != "" {
				if req, err = app.LoadJobFile(path); err != nil {
					return err
				}
			}
			if cmd.IsSet("name") {
				req.JobName = cmd.String("name")
			}
			if cmd.IsSet("type") {
				req.JobType = cmd.String("type")
			}
			if cmd.IsSet("ligand") {
				req.Ligand = cmd.String("ligand")
			}
			if cmd.IsSet("contigs") {
				req.Contigs = cmd.String("contigs")
			}
			if path := cmd.String("pdb"); path != "" {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read structure: %w", err)
				}
				req.PDBData = string(data)
			}
			if code := cmd.String("pdb-code"); code != "" {
				text, err := app.StructureByCode(ctx, &viewer.Adapter{}, code)
				if err != nil {
					return err
				}
				req.PDBData = text
			}
			for _, value := range cmd.StringSlice("site") {
				site, err := app.ParseSite(value)
				if err != nil {
					return err
				}
				req.ActiveSiteAtoms = append(req.ActiveSiteAtoms, site)
			}

			resp, err := app.Submit(ctx, client, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.Root().Writer, "%s\t%s\n", resp.ID, resp.Status)
			return nil
		},
	}
}

func downloadCmd() *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "Download a job's artifacts (or one path of them)",
		ArgsUsage: "JOB [PATH]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "Destination directory (default: download_dir)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, client, err := clientSetup(cmd)
			if err != nil {
				return err
			}
			jobID, err := requireArg(cmd, "JOB")
			if err != nil {
				return err
			}
			dir := cfg.DownloadDir
			if v := cmd.String("dir"); v != "" {
				if dir, err = config.ExpandPath(v); err != nil {
					return err
				}
			}

			dest, err := client.Download(ctx, jobID, cmd.Args().Get(1), dir)
			if err != nil {
				return fmt.Errorf("download %s: %w", jobID, err)
			}
			fmt.Fprintln(cmd.Root().Writer, dest)
			return nil
		},
	}
}

func logCmd() *cli.Command {
	return &cli.Command{
		Name:      "log",
		Usage:     "Print a job's log",
		ArgsUsage: "JOB",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "tail", Aliases: []string{"n"}, Usage: "Only the last N lines (0 = all)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, client, err := clientSetup(cmd)
			if err != nil {
				return err
			}
			jobID, err := requireArg(cmd, "JOB")
			if err != nil {
				return err
			}

			text, err := jobLog(ctx, client, jobID)
			if err != nil {
				return err
			}
			for _, line := range logtail.Lines(text, int(cmd.Int("tail"))) {
				fmt.Fprintln(cmd.Root().Writer, line)
			}
			return nil
		},
	}
}

// jobLog prefers the log route and falls back to results.log on backends
// that do not serve it.
func jobLog(ctx context.Context, client *drylab.Client, jobID string) (string, error) {
	resp, err := client.GetLog(ctx, jobID)
	if err == nil && resp.Log != "" {
		return resp.Log, nil
	}
	if err != nil && !drylab.IsStatus(err, http.StatusNotFound) {
		return "", fmt.Errorf("get log: %w", err)
	}
	job, err := client.GetJob(ctx, jobID)
	if err != nil {
		return "", fmt.Errorf("get job: %w", err)
	}
	return job.Log(), nil
}

func lookupCmd() *cli.Command {
	return &cli.Command{
		Name:      "lookup",
		Usage:     "Look up a structure by code through the backend",
		ArgsUsage: "CODE",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, client, err := clientSetup(cmd)
			if err != nil {
				return err
			}
			code, err := requireArg(cmd, "CODE")
			if err != nil {
				return err
			}
			raw, err := client.LookupStructure(ctx, code)
			if err != nil {
				return fmt.Errorf("lookup %s: %w", code, err)
			}
			return writeJSON(cmd.Root().Writer, raw)
		},
	}
}

// loadConfig reads the config file and applies the global overrides.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if v := strings.TrimSpace(cmd.String("gateway")); v != "" {
		cfg.GatewayURL = v
	}
	if v := strings.TrimSpace(cmd.String("log-level")); v != "" {
		cfg.LogLevel = v
	}
	return cfg, nil
}

// clientSetup prepares config, stderr logging and a gateway client for the
// one-shot commands.
func clientSetup(cmd *cli.Command) (config.Config, *drylab.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return config.Config{}, nil, err
	}
	if _, err := logging.Setup(logging.Options{Level: cfg.LogLevel}); err != nil {
		return config.Config{}, nil, err
	}
	client, err := app.NewClient(cfg, cmd.String("backend"))
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, client, nil
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	value := strings.TrimSpace(cmd.Args().First())
	if value == "" {
		return "", errors.New(name + " is required")
	}
	return value, nil
}

func writeJSON(w io.Writer, raw json.RawMessage) error {
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		_, err = w.Write(append(raw, '\n'))
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
