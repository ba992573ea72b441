// Package storage provides the persistence layer behind the settings store.
//
// It currently supports:
//   - Broadcast settings (key/value, survive restarts)
//   - Audit log appends (toggles and reconfigurations) with retention pruning
package storage
