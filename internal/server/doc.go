// Package server is the web front end. It accepts crawl requests, runs them
// on a worker pool and serves their progress and output files.
package server
