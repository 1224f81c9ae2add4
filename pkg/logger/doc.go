// Package logger provides structured logging for the collector.
//
// It wraps zerolog behind a small Logger interface so components can take a
// logger as a dependency and tests can substitute TestLogger or the nop
// logger.
//
//	cfg := &config.LoggingConfig{Level: "debug", File: "wbscraper.log"}
//	if err := logger.Initialize(cfg); err != nil {
//	    return err
//	}
//	logger.WithField("user_id", uid).Info("Crawl started")
//
// Console output is coloured and goes to stderr. When a file is configured,
// JSON lines are appended to it as well.
package logger
