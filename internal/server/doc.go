// Package server exposes the HTTP control surface of the dashboard:
// contacts CRUD, config editing, campaign start/stop/status, a live SSE
// result stream, quota state, the run archive, and device utilities.
//
// Handlers never block on a send; everything they read from the dispatcher
// is a snapshot.
package server
