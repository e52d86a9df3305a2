package logging

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

// sessionStamp reads the live session state attached to every record. Any
// getter may be nil.
type sessionStamp struct {
	tick    func() uint64
	mission func() string
	mode    func() string
}

func (s sessionStamp) attrs() []slog.Attr {
	var out []slog.Attr
	if s.tick != nil {
		if t := s.tick(); t > 0 {
			out = append(out, slog.Uint64("tick", t))
		}
	}
	if s.mission != nil {
		if id := s.mission(); id != "" {
			out = append(out, slog.String("mission", id))
		}
	}
	if s.mode != nil {
		if m := s.mode(); m != "" {
			out = append(out, slog.String("mode", m))
		}
	}
	return out
}

// stampHandler adds the session stamp at handle time, so the values are the
// ones current when the record is written rather than when the logger was
// derived.
type stampHandler struct {
	next  slog.Handler
	stamp sessionStamp
}

func (h *stampHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *stampHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(h.stamp.attrs()...)
	return h.next.Handle(ctx, r)
}

func (h *stampHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &stampHandler{next: h.next.WithAttrs(attrs), stamp: h.stamp}
}

func (h *stampHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &stampHandler{next: h.next.WithGroup(name), stamp: h.stamp}
}

// fanout writes each record to every enabled sink. A failing sink (a GELF
// endpoint that went away, a full disk) never blocks the others; failures
// are counted and joined into the returned error.
type fanout struct {
	sinks  []slog.Handler
	failed *atomic.Uint64
}

func newFanout(sinks ...slog.Handler) *fanout {
	f := &fanout{failed: new(atomic.Uint64)}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range f.sinks {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, s := range f.sinks {
		if !s.Enabled(ctx, r.Level) {
			continue
		}
		if err := s.Handle(ctx, r.Clone()); err != nil {
			f.failed.Add(1)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &fanout{sinks: make([]slog.Handler, len(f.sinks)), failed: f.failed}
	for i, s := range f.sinks {
		next.sinks[i] = s.WithAttrs(attrs)
	}
	return next
}

func (f *fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	next := &fanout{sinks: make([]slog.Handler, len(f.sinks)), failed: f.failed}
	for i, s := range f.sinks {
		next.sinks[i] = s.WithGroup(name)
	}
	return next
}
