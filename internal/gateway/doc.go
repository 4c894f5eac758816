// Package gateway is the thin HTTP layer between drylab clients and the
// compute backend.
//
// Every route forwards to exactly one backend endpoint, chosen per request
// from the "backend" query parameter or the configured default. Caching is
// disabled in both directions.
//
// Failures are normalized so clients can branch on status alone:
//
//   - backend unreachable, or a success body that is not JSON: 502 with a
//     fixed per-route message
//   - backend non-success status: the same status, {"error":"Upstream error"}
//   - job listing: any failure becomes 200 {"jobs":[]}
//   - structure lookup without a code: 400 before the backend is contacted
//
// Downloads are streamed, never buffered, and relay the backend's status and
// headers minus hop-by-hop fields.
package gateway
