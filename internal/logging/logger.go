package logging

import (
	"io"
	"os"

	"github.com/autobid/auction-api/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const serviceName = "auction-api"

// New creates a new structured logger
func New(cfg *config.Config) *logrus.Logger {
	return NewWithOutput(cfg, os.Stdout)
}

// NewWithOutput is New writing to w.
func NewWithOutput(cfg *config.Config, w io.Writer) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warn("Invalid log level, defaulting to info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "ts",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "msg",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z",
		})
	}

	logger.SetOutput(w)
	logger.AddHook(&defaultFieldsHook{fields: logrus.Fields{
		"service":     serviceName,
		"version":     Version(),
		"environment": cfg.Server.Environment,
	}})

	return logger
}

// defaultFieldsHook stamps every entry with service metadata.
type defaultFieldsHook struct {
	fields logrus.Fields
}

func (h *defaultFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *defaultFieldsHook) Fire(entry *logrus.Entry) error {
	for k, v := range h.fields {
		if _, exists := entry.Data[k]; !exists {
			entry.Data[k] = v
		}
	}
	return nil
}

// Version returns the application version
func Version() string {
	if version := os.Getenv("APP_VERSION"); version != "" {
		return version
	}
	return "dev"
}

// WithUserID adds user ID to logger context
func WithUserID(logger *logrus.Logger, userID uint) *logrus.Entry {
	return logger.WithField("user_id", userID)
}

// FromCtx returns an entry carrying the request and user ids of c.
func FromCtx(logger *logrus.Logger, c *fiber.Ctx) *logrus.Entry {
	fields := logrus.Fields{
		"method": c.Method(),
		"path":   c.Path(),
	}
	if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
		fields["request_id"] = rid
	}
	if uid, ok := c.Locals("user_id").(uint); ok && uid != 0 {
		return WithUserID(logger, uid).WithFields(fields)
	}
	return logger.WithFields(fields)
}
