// Package scheduler maintains named cron-scheduled tasks and fires each
// one's callback, at most once per due instant, on the application's main
// execution context.
//
// Detection runs on the scheduler's own timer goroutine, polling at a fixed
// short interval; execution is marshalled onto the supplied Target (the
// runner), so a slow callback never blocks detection and the timer loop
// never runs application code itself.
package scheduler
