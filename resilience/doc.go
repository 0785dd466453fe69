// Package resilience retries failing operations with exponential backoff.
//
// A Policy describes how many times an operation may be attempted and how long
// to wait between attempts. Retry drives the attempt loop:
//
//	policy := resilience.Policy{MaxAttempts: 3, Backoff: resilience.Backoff{Initial: 2 * time.Second}}
//	uri, err := resilience.Retry(ctx, resilience.RetryConfig{Policy: policy},
//	    func(ctx context.Context, attempt int) (string, error) {
//	        return upload(ctx)
//	    })
package resilience
