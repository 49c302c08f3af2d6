// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Pipeline editing (modules, connections, parameters, selection)
//   - Validation, execution and export/import
//   - Workflow persistence and run history comparison
//   - Health checks
//   - Prometheus metrics
package http
