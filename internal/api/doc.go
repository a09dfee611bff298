// Package api implements the diagnostics and control HTTP API for the
// GPIO remote runtime.
//
// This package provides:
//   - Read-only views of bridge health, the connection table and item bindings
//   - A command route that shares the MQTT command pipeline
//   - The command audit log
//   - A WebSocket stream of item state changes
//   - Prometheus metrics on /metrics
//
// # Security
//
// Routes that drive outputs or expose history require an HS256 bearer
// token whose issuer matches security.jwt.issuer. Tokens are minted
// out-of-band with IssueToken; there are no user accounts.
//
// The server follows the same lifecycle pattern as other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
