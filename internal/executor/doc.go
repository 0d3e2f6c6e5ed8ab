// Package executor drives one window through the completion capability with
// bounded retries and exponential backoff.
//
// Each call to [Executor.Execute] runs an explicit state machine:
//
//	Pending -> Calling -> Succeeded
//	                   -> Retrying -> Calling
//	                   -> Exhausted
//
// A failure whose kind is in the policy's retryable set is retried after
// min(BaseDelay * Multiplier^(attempt-1), MaxDelay), or after the server's
// Retry-After hint when that is longer (still capped at MaxDelay). Any other
// failure, or reaching MaxAttempts, ends in Exhausted. Execute always returns
// exactly one Result.
//
// Backoff sleeps only block the calling goroutine. Once the context is
// cancelled no new attempt is started and a pending backoff ends early; an
// attempt already in flight runs on a context detached from cancellation,
// bounded by the per-call timeout.
package executor
