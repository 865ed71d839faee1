// Package logger provides structured logging for civitdl on top of zerolog.
//
// Console output goes to stderr so that stdout stays free for progress and
// summaries. When a log file is configured, JSON lines are appended to it
// in addition to the console.
//
//	err := logger.Initialize(&config.LoggingConfig{Level: "debug"})
//	log := logger.GetLogger().WithField("username", "alice")
//	log.InfoWithFields("listing complete", map[string]interface{}{
//	    "images": 240,
//	    "pages":  3,
//	})
//
// Tests use NewNopLogger, or NewTestLogger to assert on captured messages.
package logger
