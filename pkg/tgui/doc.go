// Package tgui provides small Telegram UI helpers:
//   - HTML escaping/formatting for ParseMode="HTML"
//   - An inline keyboard builder over transport.Button
//   - Callback data size checks
package tgui
