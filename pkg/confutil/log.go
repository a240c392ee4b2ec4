package confutil

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the global logger instance used across the configuration core.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(os.Stderr)
	Logger.SetLevel(logrus.InfoLevel)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// SetLogLevel sets the logging level by name.
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Logger.SetLevel(lvl)
	return nil
}

// SetLogOutput sets the log output destination.
func SetLogOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// SetJSONFormat switches the logger to JSON output.
func SetJSONFormat() {
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	})
}

// WithEntity returns a logger carrying the kind/uuid of the entity being
// mutated, e.g. WithEntity("instance", inst.UUID).
func WithEntity(kind, uuid string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{"entity": kind, "uuid": uuid})
}

// WithSession returns a logger tagged with a session's lock context id.
func WithSession(callerID string) *logrus.Entry {
	return Logger.WithField("session", callerID)
}

// WithECID returns a logger tagged with a reservation execution context id.
func WithECID(ecID string) *logrus.Entry {
	return Logger.WithField("ec_id", ecID)
}
