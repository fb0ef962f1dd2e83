// SPDX-License-Identifier: Apache-2.0

// Package progress reports dump/restore progress, the way
// pgroll/pkg/migrations.Logger reports migration progress: one small
// interface, a pterm-backed implementation for interactive use, and a noop
// implementation for tests and library callers that don't want output.
package progress

import "github.com/pterm/pterm"

// Logger receives progress events from a running dump or restore.
type Logger interface {
	LogSegmentWritten(tableID string, index, rowCount int)
	LogSequenceCaptured(seqID string, value int64)
	LogTableLoaded(tableID string, segmentCount int)
	LogSequenceRestored(seqID string, value int64)
	LogConstraintsDeferred(names []string)

	Info(msg string, args ...any)
}

type ptermLogger struct {
	logger pterm.Logger
}

type noopLogger struct{}

// NewLogger returns a Logger that writes structured progress lines via
// pterm's default logger.
func NewLogger() Logger {
	return &ptermLogger{logger: pterm.DefaultLogger}
}

// NewNoopLogger returns a Logger that discards every event.
func NewNoopLogger() Logger {
	return &noopLogger{}
}

func (l *ptermLogger) LogSegmentWritten(tableID string, index, rowCount int) {
	l.logger.Info("wrote segment", l.logger.Args("table", tableID, "index", index, "rows", rowCount))
}

func (l *ptermLogger) LogSequenceCaptured(seqID string, value int64) {
	l.logger.Info("captured sequence value", l.logger.Args("sequence", seqID, "value", value))
}

func (l *ptermLogger) LogTableLoaded(tableID string, segmentCount int) {
	l.logger.Info("loaded table", l.logger.Args("table", tableID, "segments", segmentCount))
}

func (l *ptermLogger) LogSequenceRestored(seqID string, value int64) {
	l.logger.Info("restored sequence value", l.logger.Args("sequence", seqID, "value", value))
}

func (l *ptermLogger) LogConstraintsDeferred(names []string) {
	l.logger.Info("deferred constraints", l.logger.Args("constraints", names))
}

func (l *ptermLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, l.logger.Args(args))
}

func (l *noopLogger) LogSegmentWritten(tableID string, index, rowCount int) {}
func (l *noopLogger) LogSequenceCaptured(seqID string, value int64)         {}
func (l *noopLogger) LogTableLoaded(tableID string, segmentCount int)       {}
func (l *noopLogger) LogSequenceRestored(seqID string, value int64)         {}
func (l *noopLogger) LogConstraintsDeferred(names []string)                 {}
func (l *noopLogger) Info(msg string, args ...any)                          {}
