// Package llm provides an OpenAI-compatible chat client (OpenRouter by
// default) that requests JSON-only completions.
//
// The step content generator uses it to describe detected dance segments and
// the routine as a whole; preflight uses HealthCheck to verify the key and
// model before a run.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx, empty completions, and network
// timeouts. Backoff doubles from the base delay up to the max delay; passing
// equal values to WithRetryBackoff yields a fixed delay. Context cancellation
// aborts retries immediately.
//
// Callers decide what to do once retries are exhausted. The step generator
// falls back to templated content.
package llm
