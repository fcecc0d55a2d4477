// Package httpapi exposes the turn queue over HTTP.
//
// It serves the three Slack callback endpoints (slash commands, the Events
// API, and block interactions) and a small read-only JSON surface for
// health checks and queue inspection:
//
//	POST /slack/commands
//	POST /slack/events
//	POST /slack/interactions
//	GET  /healthz
//	GET  /v1/queues/:container
//	GET  /v1/queues/:container/threads/:thread
//
// Slack requests are signature-checked before they reach a handler, and
// each Slack user is rate limited independently.
package httpapi
