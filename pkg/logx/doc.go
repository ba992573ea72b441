// Package logx configures speechspy's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Noisy error paths bounded (Throttle, backed by x/time/rate)
package logx
