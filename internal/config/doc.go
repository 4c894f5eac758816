// Package config loads the drylab TOML configuration.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/drylab/config.toml (default)
//  3. If the config file doesn't exist, fall back to Default()
//  4. If the file exists but fields are missing/empty, use defaults
//
// Command-line flags and environment variables are applied on top of the
// loaded Config by cmd/drylab.
//
// # TOML Format
//
//	backend_url      = "http://127.0.0.1:8001"
//	gateway_url      = "http://127.0.0.1:3000"
//	listen           = "127.0.0.1:3000"
//	download_dir     = "~/Downloads/drylab"
//	viewer_command   = "pymol"
//	log_level        = "info"
//	log_file         = ""
//	upstream_timeout = ""      # Go duration, empty = no timeout
//	poll_interval    = "10s"   # "0s" disables list refresh
//
// All fields are optional. Tilde expansion is performed for download_dir
// and log_file.
//
// # Error Handling
//
// Load returns errors for path expansion failures, unreadable files, TOML
// parse errors and invalid durations. A missing file is not an error.
package config
