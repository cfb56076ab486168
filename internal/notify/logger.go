package notify

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

// zapLoggerAdapter lets watermill components log through the process zap logger.
type zapLoggerAdapter struct {
	logger *zap.Logger
	fields watermill.LogFields
}

func NewWatermillLogger(logger *zap.Logger) watermill.LoggerAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &zapLoggerAdapter{logger: logger.Named("watermill"), fields: watermill.LogFields{}}
}

func (a *zapLoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.logger.Error(msg, append(a.zapFields(fields), zap.Error(err))...)
}

func (a *zapLoggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.Info(msg, a.zapFields(fields)...)
}

func (a *zapLoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, a.zapFields(fields)...)
}

// Trace maps to debug; zap has no trace level.
func (a *zapLoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, a.zapFields(fields)...)
}

func (a *zapLoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &zapLoggerAdapter{logger: a.logger, fields: a.combine(fields)}
}

func (a *zapLoggerAdapter) combine(fields watermill.LogFields) watermill.LogFields {
	all := make(watermill.LogFields, len(a.fields)+len(fields))
	for k, v := range a.fields {
		all[k] = v
	}
	for k, v := range fields {
		all[k] = v
	}
	return all
}

func (a *zapLoggerAdapter) zapFields(fields watermill.LogFields) []zap.Field {
	all := a.combine(fields)
	out := make([]zap.Field, 0, len(all))
	for k, v := range all {
		out = append(out, zap.Any(k, v))
	}
	return out
}
