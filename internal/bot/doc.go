// Package bot routes chat updates to household commands and inline-button
// callbacks.
//
// Updates are handled by a bounded worker pool running under a supervisor.
// Every handler goes through the same middleware chain: panic recovery,
// request logging with a request id, an optional audit record and a
// timeout. Owner-only commands are checked before anything is queued.
//
// Callback data has the form "scope:action:payload" (see pkg/tgui):
//
//	menu:hide                 delete the message the button sits on
//	menu:more:<section>       expand the menu in place
//	dinner:list               post the schedule
//	dinner:more:<window>      grow the schedule view, or split it
//	dinner:rsvp:<date>:<ans>  answer for a dinner night
//	bday:list                 post the birthday list
package bot
