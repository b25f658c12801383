// Package logging adapts log/slog to the cache.Logger interface.
package logging

import (
	"log/slog"

	"github.com/medicamenta/tiercache/cache"
)

// Slog forwards cache log events to a slog.Logger tagged with a component
// attribute.
type Slog struct {
	l *slog.Logger
}

// New wraps l (slog.Default() when nil) with a component label.
func New(l *slog.Logger, component string) *Slog {
	if l == nil {
		l = slog.Default()
	}
	return &Slog{l: l.With("component", component)}
}

func (s *Slog) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *Slog) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *Slog) Error(msg string, args ...any) { s.l.Error(msg, args...) }

var _ cache.Logger = (*Slog)(nil)
