// Package logging configures per-subsystem loggers in the style of the
// original Python simulator's logging.basicConfig/getLogger pair.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// textFormatter lays out records as
// "<timestamp>  <LEVEL>  <name>  <message>", matching the format string in
// the original main.py's setup_logging.
type textFormatter struct {
	logrus.TextFormatter
}

func (f *textFormatter) Format(e *logrus.Entry) ([]byte, error) {
	name, _ := e.Data["name"].(string)
	line := e.Time.Format("2006-01-02 15:04:05,000") + "  " +
		padLevel(e.Level.String()) + "  " +
		padName(name) + "  " +
		e.Message + "\n"
	return []byte(line), nil
}

func padLevel(level string) string {
	level = strings.ToUpper(level)
	for len(level) < 8 {
		level += " "
	}
	return level
}

func padName(name string) string {
	for len(name) < 20 {
		name += " "
	}
	return name
}

// Setup installs the package-wide logrus configuration: output to stdout,
// level parsed from level (DEBUG/INFO/WARNING, default INFO).
func Setup(level string) {
	logrus.SetOutput(os.Stdout)
	logrus.SetFormatter(&textFormatter{})
	logrus.SetLevel(parseLevel(level))
}

func parseLevel(level string) logrus.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return logrus.DebugLevel
	case "WARNING", "WARN":
		return logrus.WarnLevel
	case "ERROR":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// For returns a named sub-logger, equivalent to Python's
// logging.getLogger(name).
func For(name string) *logrus.Entry {
	return logrus.WithField("name", name)
}
