// Package resilience is the in-process control plane for calls to flaky
// external dependencies. It classifies failures, retries with backoff and
// jitter, enforces retry budgets, guards each dependency with a circuit
// breaker, and keeps a rolling analytics window over recent attempts.
//
// The package supports:
//   - Error classification into six kinds that drive retry decisions
//   - Retry orchestration with per-service policies and per-kind ceilings
//   - Retry budgets bounding total retry volume per service and globally
//   - Per-service circuit breakers with half-open trial recovery
//   - Fallback composition (degradation, chains, full recovery)
//
// Usage Example:
//
//	m := resilience.New(resilience.WithLogger(logger))
//	page, err := resilience.ExecuteWithRetry(ctx, m, "firecrawl",
//	    func(ctx context.Context) (*Page, error) {
//	        return client.Scrape(ctx, url)
//	    })
package resilience
