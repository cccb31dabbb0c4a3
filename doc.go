// Package troupe runs mailbox-driven workers.
//
// Runtimes
//   - Actor: one worker draining a Mailbox and calling a Receive function per message.
//   - Cast: a crew of workers sharing one Mailbox, coordinated by a director. The crew
//     can grow and shrink while running (Add, Remove) and one idle timeout covers it.
//   - Collector: an Actor or a Cast that folds messages into an accumulator.
//
// Stopping
// A run ends in one of four ways:
//   - Cut: a stop sentinel is queued behind the messages already put. The run ends once
//     they are processed and the callback runs.
//   - Idle timeout (WithTimeout): no message was taken for the configured duration. The
//     callback runs.
//   - CutImmediately or a canceled context: workers exit after their current message and
//     the callback does not run.
//   - A handle function returns an error: Wait returns a *HandlerError carrying the
//     message and the worker id.
//
// Defaults
// Unless overridden, a runtime starts with:
//   - Timeout: 0 (no idle timeout)
//   - Workers: 1 (Cast only)
//   - MaxWorkers: 0 (no cap)
//   - Mailbox: unbounded
//   - Logger: zap console logger at info level
//   - Metrics: no-op provider
//
// Error handling
// A receive that returns an error or panics is never dropped silently. An Actor passes it
// to its Handle; a Cast worker reports it to the director, which pauses polling and calls
// the CastHandle with the failing worker id and the live Crew. The default handles log the
// error and stop the run.
package troupe
