// Package notifier delivers bot-initiated messages: dinner and birthday
// reminders, plan notices and house meeting reminders.
//
// # Pipeline
//
// Service queues notifications and sends them from a small worker pool
// through a transport.Adapter, with a shared rate limit, exponential retry
// with jitter, and a dedup window so the daily run can fire more than once
// (cron plus an external HTTP trigger) without double posting. Dedup windows
// can be persisted so they survive a restart.
//
// Direct is the synchronous fallback used when the pipeline is disabled.
//
// # History
//
// For debugging and operator visibility, the service keeps a small in-memory
// history of recently sent notifications.
package notifier
