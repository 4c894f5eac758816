// Package drylab provides an HTTP client for the drylab gateway API.
//
// # Overview
//
// The client is what the terminal browser and the CLI subcommands use to
// reach the compute backend. It never talks to the backend directly: every
// call goes through the gateway, which normalizes failures.
//
// The package is split into two files:
//
//   - client.go: HTTP client, error mapping and the streaming download
//   - types.go: data structures mirroring the gateway payloads
//
// # Client Usage
//
//	client, err := drylab.NewClient("127.0.0.1:3000")
//	if err != nil {
//		return err
//	}
//	jobs, err := client.ListJobs(ctx)
//
// WithBackend returns a copy of the client that adds the "backend" query
// parameter to every request, so one browsing session can target a backend
// other than the gateway default.
//
// # Endpoints
//
//   - GET  /api/jobs/list: all jobs (empty on backend failure)
//   - POST /api/jobs: submit a job
//   - GET  /api/jobs/{id}: job metadata
//   - GET  /api/jobs/{id}/log: job log
//   - GET  /api/jobs/{id}/tree: full output listing
//   - GET  /api/jobs/{id}/file?path=: file preview
//   - GET  /api/jobs/{id}/download[?path=]: byte stream
//   - GET  /api/pdb?code=: structure lookup
//
// # Error Handling
//
// Gateway responses with status >= 400 become *APIError carrying the status
// and the gateway's "error" message. Use IsStatus to tell a missing job (404)
// apart from an unreachable backend (502). Network and decode failures are
// wrapped with fmt.Errorf:
//
//   - "execute request: dial tcp: connection refused"
//   - "api /api/jobs/x returned status 404: Upstream error"
//   - "decode response: unexpected end of JSON input"
//
// JSON calls are bounded by a 15 second timeout. Downloads are not, since
// artifacts can be large.
//
// # Thread Safety
//
// Client is safe for concurrent use. WithBackend never mutates the receiver.
package drylab
