// Package ui provides the drylab terminal browser.
//
// The browser is a Bubble Tea program with two screens:
//
//   - Jobs: every job known to the backend, newest first, with a status
//     badge. The list is refreshed by the app poller through state.JobList
//     and read here on each tick.
//   - Job detail: metadata (or the raw JSON payload), the job log, and the
//     output file tree with an on-demand preview pane.
//
// Metadata and tree are loaded independently through state.JobDetail, so
// a failed tree fetch shows an empty listing next to intact metadata.
// Preview fetch failures keep the current preview and are only logged.
//
// # Key Bindings
//
//   - j/k, g/G: Move selection
//   - enter: Open job / expand directory / preview file
//   - /: Filter jobs by name or id
//   - tab: Cycle detail panes (files, log, preview)
//   - d / D: Download selected path / whole job
//   - y: Copy selected path
//   - v: Send the previewed structure (or the job input) to the viewer
//   - J: Toggle raw JSON
//   - r / f: Reload job / refresh file tree
//   - x: Close preview
//   - esc: Back to jobs
//   - T: Cycle theme
//   - h/?: Help
//   - e or ctrl+c: Quit
//
// The UI never writes to the terminal outside Bubble Tea; logs go to the
// file configured by app.Browse.
package ui
