package capture

import (
	"fmt"
	"log/slog"
	"strings"
)

// quietLogger forwards badger errors and warnings to slog and drops the
// chatty info/debug output.
type quietLogger struct{}

func (quietLogger) Errorf(format string, args ...interface{}) {
	slog.Error("badger: " + badgerMsg(format, args...))
}

func (quietLogger) Warningf(format string, args ...interface{}) {
	slog.Warn("badger: " + badgerMsg(format, args...))
}

func (quietLogger) Infof(string, ...interface{}) {}
func (quietLogger) Debugf(string, ...interface{}) {}

func badgerMsg(format string, args ...interface{}) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
