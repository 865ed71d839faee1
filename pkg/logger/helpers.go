package logger

import "github.com/rs/zerolog"

// LogDownload records the outcome of a single image download
func LogDownload(l Logger, id, target string, bytes int64, err error) {
	fields := map[string]interface{}{
		"image_id": id,
		"target":   target,
	}

	if err != nil {
		l.WithError(err).ErrorWithFields("download failed", fields)
		return
	}

	fields["bytes"] = bytes
	l.DebugWithFields("download completed", fields)
}

// LogPage records a fetched listing page
func LogPage(l Logger, username string, page, items int, hasNext bool) {
	l.DebugWithFields("listing page fetched", map[string]interface{}{
		"username": username,
		"page":     page,
		"items":    items,
		"has_next": hasNext,
	})
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string) {}
func (nopLogger) Info(string) {}
func (nopLogger) Warn(string) {}
func (nopLogger) Error(string) {}
func (n nopLogger) WithField(string, interface{}) Logger { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger { return n }
func (n nopLogger) WithError(error) Logger { return n }
func (nopLogger) DebugWithFields(string, map[string]interface{}) {}
func (nopLogger) InfoWithFields(string, map[string]interface{}) {}
func (nopLogger) WarnWithFields(string, map[string]interface{}) {}
func (nopLogger) ErrorWithFields(string, map[string]interface{}) {}
func (nopLogger) GetZerolog() *zerolog.Logger { return nil }
