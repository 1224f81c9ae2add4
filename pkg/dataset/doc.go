// Package dataset saves the collected posts of a crawl as JSON under the
// output's data directory, next to the rendered reports.
package dataset
