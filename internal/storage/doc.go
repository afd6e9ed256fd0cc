// Package storage provides the sqlite persistence layer.
//
// It owns two durable concerns:
//   - The daily quota state (one row: calendar date + sent count)
//   - The run archive (immutable records of completed campaign runs)
package storage
