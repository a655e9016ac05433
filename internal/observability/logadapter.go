package observability

import "github.com/rs/zerolog"

// LogAdapter satisfies the zeroLogger interface InitTracer needs, so callers
// can pass their zerolog.Logger straight through without InitTracer importing
// zerolog.Logger by value (keeps the two files independently testable).
type LogAdapter struct {
	Logger zerolog.Logger
}

func (a LogAdapter) Info(msg string) { a.Logger.Info().Msg(msg) }

func (a LogAdapter) Error(msg string, err error) { a.Logger.Error().Err(err).Msg(msg) }
