// Package tgui holds small Telegram UI helpers used by housebot:
//   - HTML helpers that escape by default (ParseMode=HTML)
//   - inline keyboard builders
//   - callback data in the form "scope:action:payload"
//   - a message builder producing text plus send options
package tgui
