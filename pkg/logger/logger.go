package logger

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var defaultLogger = logrus.New()

func init() {
	defaultLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	defaultLogger.SetLevel(logrus.InfoLevel)
}

// SetLevel sets the minimum log level, accepting the same names
// logrus.ParseLevel understands ("debug", "info", "warn", "error").
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return
	}
	defaultLogger.SetLevel(lvl)
}

// SetJSON switches the output formatter between colorized text
// (default, interactive use) and structured JSON (production use).
func SetJSON(enabled bool) {
	if enabled {
		defaultLogger.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	defaultLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
}

// Fields is a convenience alias so callers don't need to import
// logrus directly just to attach structured fields.
type Fields = logrus.Fields

// WithFields returns an entry carrying the given structured fields,
// for call sites that want to attach conn_id/state/rtt_ms context.
func WithFields(fields Fields) *logrus.Entry {
	return defaultLogger.WithFields(fields)
}

// Debug logs a debug message.
func Debug(format string, args ...interface{}) {
	defaultLogger.Debugf(format, args...)
}

// Info logs an informational message.
func Info(format string, args ...interface{}) {
	defaultLogger.Infof(format, args...)
}

// Warn logs a warning message.
func Warn(format string, args ...interface{}) {
	defaultLogger.Warnf(format, args...)
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	defaultLogger.Errorf(format, args...)
}

// Success logs a notable positive event at info level.
func Success(format string, args ...interface{}) {
	defaultLogger.WithField("outcome", "success").Infof(format, args...)
}

// Fatal logs a fatal error and exits.
func Fatal(format string, args ...interface{}) {
	defaultLogger.Fatalf(format, args...)
}

// Section prints a section header, for CLI startup narration.
func Section(title string) {
	border := "═══════════════════════════════════════════════════════════"
	fmt.Printf("\n╔%s╗\n", border)
	fmt.Printf("║ %-61s ║\n", title)
	fmt.Printf("╚%s╝\n\n", border)
}

// Banner prints the application banner.
func Banner(title, version string) {
	banner := `
╔═══════════════════════════════════════════════════════════╗
║                                                           ║
║   ██████╗ ███████╗██╗      █████╗ ██╗   ██╗              ║
║   ██╔══██╗██╔════╝██║     ██╔══██╗╚██╗ ██╔╝              ║
║   ██████╔╝█████╗  ██║     ███████║ ╚████╔╝               ║
║   ██╔══██╗██╔══╝  ██║     ██╔══██║  ╚██╔╝                ║
║   ██║  ██║███████╗███████╗██║  ██║   ██║                 ║
║   ╚═╝  ╚═╝╚══════╝╚══════╝╚═╝  ╚═╝   ╚═╝                 ║
║                                                           ║
║              %-37s║
║                    Version %-7s                      ║
║                                                           ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Fprintf(os.Stdout, banner, title, version)
}
