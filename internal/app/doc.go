// Package app is the composition root for drylab.
//
// # Components
//
//   - app.go: Serve (gateway), Browse (terminal UI) and client construction
//   - poller.go: background job list refresh with failure backoff
//   - submit.go: job files, active-site flags and structure fetch for submission
//
// # Data Flow
//
//	Browse()
//	  ├─> prefs.Load()          theme and tree preferences
//	  ├─> drylab.NewClient()    gateway client (+ backend override)
//	  ├─> state.JobList{}       shared job collection
//	  ├─> StartPoller()         background reloads
//	  ├─> viewer.NewSession()   structure handles, closed on exit
//	  └─> ui.Run()              blocks until quit
//
//	Serve()
//	  └─> gateway.New().Serve() blocks until ctx is cancelled
//
// # Polling Behavior
//
// The poller reloads the job list every PollInterval. While the gateway is
// unreachable the wait doubles per consecutive failure, capped at 30
// seconds, and resets after the next success. Failures are logged and never
// stop the loop. A zero interval disables polling; the UI still reloads on
// demand.
//
// # Error Handling
//
// Only setup failures are returned (config, prefs, client construction, a
// listener that cannot bind). Everything after startup degrades in place.
package app
