// Package retry runs operations against the upstream API with bounded
// attempts and a pause between them.
//
//	cfg := retry.ConstantConfig(3, 2*time.Second, log)
//	body, err := retry.DoWithResult(ctx, cfg, func(ctx context.Context) ([]byte, error) {
//		return fetch(ctx, url)
//	})
//
// Errors are classified through pkg/errors: transport failures, 429 and 5xx
// are retried, other client errors and cancellation are returned at once.
// When RateLimitBackoff is set it takes over from Backoff after a 429.
package retry
