// Package retry provides exponential backoff retry logic for transient failures.
//
// [WithExponentialBackoff] retries an operation with configurable max
// attempts, initial delay, and maximum delay. [Until] polls a condition
// under a deadline; it backs mount verification and service readiness
// checks, where the external side settles asynchronously.
package retry
