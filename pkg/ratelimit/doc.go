// Package ratelimit paces requests to the upstream API and throttles clients
// of the web front end.
//
// Pacer enforces the configured delay between listing pages. Restart after
// the page's work makes the next Wait last the whole delay:
//
//	pacer := ratelimit.NewPacer(2 * time.Second)
//	for page := 1; page <= max; page++ {
//		if err := pacer.Wait(ctx); err != nil {
//			return err
//		}
//		process(fetch(page))
//		pacer.Restart()
//	}
//
// Keyed keeps a token bucket per client key and is used by the server to
// bound how often one address may start a crawl.
package ratelimit
