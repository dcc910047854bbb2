// Package logx configures checkinbot's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - An optional chat sink that forwards warnings to an operator chat
//     (min-level + rate limiting), so failed reminder runs are visible
//     without shell access.
package logx
