package testutil

import (
	"io"

	"github.com/dtroode/househelp-server/internal/logger"
)

func MakeNoopLogger() *logger.Logger {
	return logger.New(0, logger.WithOutput(io.Discard))
}
