// Package resilience groups the fault tolerance helpers used around remote
// sources and the dedup store.
//
//   - circuitbreaker: gobreaker wrappers, one breaker per host for retrieval
//     and one around the SQL dedup store
//   - retry: exponential backoff with jitter for transient failures
//
// Usage:
//
//	breakers := circuitbreaker.NewRegistry(circuitbreaker.FeedConfig())
//	_, err := breakers.For(host).Execute(func() (interface{}, error) {
//	    return nil, retry.WithBackoff(ctx, retry.FeedConfig(), fetch)
//	})
package resilience
