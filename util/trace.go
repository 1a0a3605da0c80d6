package util

import (
	"log/slog"
	"time"
)

// Trace logs how long the surrounding call took.
//
//	defer util.Trace("batch")()
func Trace(msg string) func() {
	start := time.Now()
	slog.Debug("enter", "op", msg)
	return func() {
		slog.Debug("exit", "op", msg, "elapsed", time.Since(start))
	}
}
