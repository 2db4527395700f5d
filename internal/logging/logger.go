// Package logging wires up the process-wide contextual logger, following
// the teacher's cmd/traffic/logger.go: a logrus.Logger, formatted and
// leveled from the environment, wrapped as a dlog.Logger and installed
// both as the context logger and the dlib fallback logger.
package logging

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/datawire/dlib/dlog"
)

// LevelEnvVar is the environment variable this process reads its log
// level from. When it is unset, FallbackLevelEnvVar is consulted.
const LevelEnvVar = "PRRTE_LOG_LEVEL"

// FallbackLevelEnvVar is read when LevelEnvVar is unset or empty.
const FallbackLevelEnvVar = "LOG_LEVEL"

// Setup builds the base logrus logger, wraps it for dlog, and returns a
// context carrying it. Every subsequent dlog.Infof(ctx, ...) call in the
// module routes through the logger built here.
func Setup(ctx context.Context) context.Context {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.0000",
	})
	logger.SetLevel(levelFromEnv())

	dl := dlog.WrapLogrus(logger)
	dlog.SetFallbackLogger(dl)
	return dlog.WithLogger(ctx, dl)
}

func levelFromEnv() logrus.Level {
	raw := os.Getenv(LevelEnvVar)
	if raw == "" {
		raw = os.Getenv(FallbackLevelEnvVar)
	}
	if raw == "" {
		return logrus.InfoLevel
	}
	level, err := logrus.ParseLevel(raw)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
