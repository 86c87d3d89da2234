// Package logging defines the logger every nanofix component writes to and
// adapters for slog, Watermill and entry style loggers.
package logging

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/ThreeDotsLabs/watermill"
)

// LogFields carries structured key/value pairs for a log line.
type LogFields map[string]any

// ServiceLogger is the logging contract used across the client. Its shape
// matches watermill.LoggerAdapter so the connection runtime and the tap
// router can share one sink.
type ServiceLogger interface {
	With(fields LogFields) ServiceLogger
	Debug(msg string, fields LogFields)
	Info(msg string, fields LogFields)
	Error(msg string, err error, fields LogFields)
	Trace(msg string, fields LogFields)
}

// EntryLogger is the non-generic form of EntryLoggerAdapter.
type EntryLogger interface {
	EntryLoggerAdapter[EntryLogger]
}

// EntryLoggerAdapter is satisfied by logrus style entries whose With*
// methods return an enriched copy of their own type.
type EntryLoggerAdapter[T any] interface {
	Error(args ...any)
	Info(args ...any)
	Debug(args ...any)
	Trace(args ...any)
	WithError(err error) T
	WithField(key string, value any) T
}

// slogLevels passes slog levels through unchanged; Watermill's default
// mapping would demote its own info lines to debug.
var slogLevels = map[slog.Level]slog.Level{
	slog.LevelDebug: slog.LevelDebug,
	slog.LevelInfo:  slog.LevelInfo,
	slog.LevelWarn:  slog.LevelWarn,
	slog.LevelError: slog.LevelError,
}

// NewSlogServiceLogger wraps a slog.Logger.
func NewSlogServiceLogger(log *slog.Logger) ServiceLogger {
	if log == nil {
		panic("nanofix: slog logger cannot be nil")
	}
	return fromWatermill{watermill.NewSlogLoggerWithLevelMapping(log, slogLevels)}
}

// NewWatermillServiceLogger wraps an existing Watermill LoggerAdapter.
func NewWatermillServiceLogger(logger watermill.LoggerAdapter) ServiceLogger {
	if logger == nil {
		panic("nanofix: watermill logger cannot be nil")
	}
	return fromWatermill{logger}
}

// NewNopServiceLogger discards everything.
func NewNopServiceLogger() ServiceLogger {
	return fromWatermill{watermill.NopLogger{}}
}

// NewEntryServiceLogger adapts an entry style logger.
func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	if any(entry) == nil {
		panic("nanofix: entry logger cannot be nil")
	}
	return &entryLogger[T]{entry: entry}
}

// NewWatermillAdapter exposes a ServiceLogger to the tap router and the
// Watermill transports.
func NewWatermillAdapter(log ServiceLogger) watermill.LoggerAdapter {
	if log == nil {
		panic("nanofix: ServiceLogger cannot be nil")
	}
	if w, ok := log.(fromWatermill); ok {
		return w.inner
	}
	return toWatermill{log}
}

type fromWatermill struct {
	inner watermill.LoggerAdapter
}

func (w fromWatermill) With(fields LogFields) ServiceLogger {
	return fromWatermill{w.inner.With(toWatermillFields(fields))}
}

func (w fromWatermill) Debug(msg string, fields LogFields) {
	w.inner.Debug(msg, toWatermillFields(fields))
}

func (w fromWatermill) Info(msg string, fields LogFields) {
	w.inner.Info(msg, toWatermillFields(fields))
}

func (w fromWatermill) Error(msg string, err error, fields LogFields) {
	w.inner.Error(msg, err, toWatermillFields(fields))
}

func (w fromWatermill) Trace(msg string, fields LogFields) {
	w.inner.Trace(msg, toWatermillFields(fields))
}

type toWatermill struct {
	base ServiceLogger
}

func (t toWatermill) Error(msg string, err error, fields watermill.LogFields) {
	t.base.Error(msg, err, fromWatermillFields(fields))
}

func (t toWatermill) Info(msg string, fields watermill.LogFields) {
	t.base.Info(msg, fromWatermillFields(fields))
}

func (t toWatermill) Debug(msg string, fields watermill.LogFields) {
	t.base.Debug(msg, fromWatermillFields(fields))
}

func (t toWatermill) Trace(msg string, fields watermill.LogFields) {
	t.base.Trace(msg, fromWatermillFields(fields))
}

func (t toWatermill) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return toWatermill{t.base.With(fromWatermillFields(fields))}
}

type entryLogger[T EntryLoggerAdapter[T]] struct {
	entry T
}

func (e *entryLogger[T]) With(fields LogFields) ServiceLogger {
	if len(fields) == 0 {
		return e
	}
	return &entryLogger[T]{entry: applyEntryFields(e.entry, fields)}
}

func (e *entryLogger[T]) Debug(msg string, fields LogFields) {
	applyEntryFields(e.entry, fields).Debug(msg)
}

func (e *entryLogger[T]) Info(msg string, fields LogFields) {
	applyEntryFields(e.entry, fields).Info(msg)
}

func (e *entryLogger[T]) Error(msg string, err error, fields LogFields) {
	entry := applyEntryFields(e.entry, fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(msg)
}

func (e *entryLogger[T]) Trace(msg string, fields LogFields) {
	applyEntryFields(e.entry, fields).Trace(msg)
}

func toWatermillFields(fields LogFields) watermill.LogFields {
	if len(fields) == 0 {
		return nil
	}
	return watermill.LogFields(maps.Clone(fields))
}

func fromWatermillFields(fields watermill.LogFields) LogFields {
	if len(fields) == 0 {
		return nil
	}
	return LogFields(maps.Clone(fields))
}

// applyEntryFields adds fields in key order so entry loggers render them
// deterministically.
func applyEntryFields[T EntryLoggerAdapter[T]](entry T, fields LogFields) T {
	if len(fields) == 0 || any(entry) == nil {
		return entry
	}
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		entry = entry.WithField(key, fields[key])
	}
	return entry
}
