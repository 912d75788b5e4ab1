package log

import (
	"github.com/go-stomp/stomp/v3"
	"github.com/rs/zerolog"
)

// Stomp routes go-stomp's client and server logging into a zerolog logger.
func Stomp(l zerolog.Logger) stomp.Logger {
	return stompLogger{l: l}
}

type stompLogger struct {
	l zerolog.Logger
}

func (s stompLogger) Debugf(format string, v ...interface{})   { s.l.Debug().Msgf(format, v...) }
func (s stompLogger) Infof(format string, v ...interface{})    { s.l.Info().Msgf(format, v...) }
func (s stompLogger) Warningf(format string, v ...interface{}) { s.l.Warn().Msgf(format, v...) }
func (s stompLogger) Errorf(format string, v ...interface{})   { s.l.Error().Msgf(format, v...) }

func (s stompLogger) Debug(msg string)   { s.l.Debug().Msg(msg) }
func (s stompLogger) Info(msg string)    { s.l.Info().Msg(msg) }
func (s stompLogger) Warning(msg string) { s.l.Warn().Msg(msg) }
func (s stompLogger) Error(msg string)   { s.l.Error().Msg(msg) }
