package common

import "log/slog"

// SlogResetLevel sets the default slog level and returns a function that
// restores the previous level. Intended for deferred use in tests that
// exercise noisy failure paths:
//
//	defer common.SlogResetLevel(slog.LevelError + 1)()
func SlogResetLevel(level slog.Level) (reset func()) {
	oldLevel := slog.SetLogLoggerLevel(level)
	return func() {
		slog.SetLogLoggerLevel(oldLevel)
	}
}
