// Package api implements the HTTP REST API and WebSocket server for the
// Gray Logic component runtime.
//
// This package provides:
//   - REST endpoints for components, bindings, plugins and the store,
//     all dispatched through the same procedure table as MQTT RPC
//   - a generic POST /api/v1/rpc/{method} endpoint
//   - WebSocket hub broadcasting component lifecycle, component state
//     and binding state events
//   - JWT bearer authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - Prometheus metrics at /metrics
//
// # Security
//
// When security.jwt.secret is set, every /api/v1 route except health
// requires an HS256-signed bearer token. Tokens are issued by the site's
// identity service; the runtime only verifies them. WebSocket connections
// use single-use tickets to prevent token leakage in URLs.
//
// # Graceful Degradation
//
// The server operates without MQTT: procedures run locally and presence
// endpoints report no peers.
package api
