// Package strategy implements the resilience behaviors wrapped around a task:
// deduplication, caching, fallback, retry, timeout, throttling and the default handler.
//
// Every strategy satisfies taskguard.Strategy using its configured defaults, and offers
// ExecuteWith to run with per-request options that were already merged with those defaults.
// Only Fallback and DefaultHandler turn a failure into a success; Retry re-raises the last
// failure once it gives up, and Dedup, Cache and Throttle only decide whether the task runs.
package strategy
