// Package storage persists housebot's state in SQLite (pure Go driver):
//   - residents and their birthdays
//   - the dinner plan and RSVPs
//   - notifier dedup keys, so reminders are not repeated after a restart
//   - an audit log of operator actions
//
// Calendar dates are stored as YYYY-MM-DD text and returned as UTC
// midnight values.
package storage
