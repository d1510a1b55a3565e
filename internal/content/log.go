package content

import (
	"errors"
	"log/slog"
)

// LogAbsence records a factory call that produced nothing. Plain absence is
// expected and logged at debug; a broken factory is a warning.
func LogAbsence(logger *slog.Logger, msg string, err error, args ...any) {
	args = append(args, "error", err)
	if errors.Is(err, ErrFactoryFailed) {
		logger.Warn(msg, args...)
		return
	}
	logger.Debug(msg, args...)
}
