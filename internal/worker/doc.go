// Package worker runs crawl tasks on a bounded pool of goroutines. Jobs are
// queued without blocking and each outcome is delivered on Results.
package worker
