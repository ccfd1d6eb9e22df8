// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Setup applies level and format ("text" or "json") to the standard logger
// and returns it. Output goes to w when non-nil.
func Setup(level, format string, w io.Writer) (*logrus.Logger, error) {
	logger := logrus.StandardLogger()
	if err := Configure(logger, level, format); err != nil {
		return nil, err
	}
	if w != nil {
		logger.SetOutput(w)
	}
	return logger, nil
}

// Configure applies level and format to logger.
func Configure(logger *logrus.Logger, level, format string) error {
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("logging: unsupported format %q (supported: text, json)", format)
	}
	return nil
}
