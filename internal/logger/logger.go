// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

// Package logger holds the process-wide logrus instance with per-module
// tagged entries.
package logger

import (
	"github.com/sirupsen/logrus"
)

var log = func() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return logger
}()

// Setup applies the configured level, falling back to info for unknown
// levels.
func Setup(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}

	log.SetLevel(parsed)
}

// Entry returns a logger entry tagged with the module name.
func Entry(module string) *logrus.Entry {
	return log.WithField("module", module)
}
