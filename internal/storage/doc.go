// Package storage provides a minimal persistence layer used by the bot.
//
// It supports:
//   - Audit log appends (every roster update made from a button click)
//   - Callback dedup state, so redelivered callbacks are not applied twice
//     (survives restarts)
package storage
