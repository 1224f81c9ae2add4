// Package ui holds the plain terminal output of the CLI: colored messages,
// a line based crawl progress display and desktop notifications.
package ui
