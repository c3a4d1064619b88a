// Package logx configures cloudrank's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//
// The Service supports re-applying sink configuration at runtime without
// invalidating loggers handed out earlier.
package logx
