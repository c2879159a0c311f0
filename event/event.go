package event

import (
	"fmt"
	"sync"

	"github.com/joeycumines/go-reactor/deferred"
	"github.com/joeycumines/go-reactor/internal/obslog"
)

// Callback is a listener attached via BindEvent. It receives the fired data
// and is never expected to return a value. Any panic it raises is
// recovered, logged, and swallowed so one misbehaving listener cannot break
// the rest of the fan-out.
type Callback func(data any)

// Spec declares the two disjoint event-name sets a Handler manages: names
// in OneShot fire at most once and are backed by a *deferred.Deferred;
// names in Repeatable fire any number of times and are backed by an
// ordered listener list.
type Spec struct {
	OneShot    []string
	Repeatable []string
}

// Handler is the Go realization of EventHandler: embed it in a type (such
// as a protocol Connection or Producer) to give it one-shot and repeatable
// events.
type Handler struct {
	mu         sync.Mutex
	oneShot    map[string]*deferred.Deferred
	repeatable map[string][]deferred.Handler
	self       any
	log        obslog.Logger
}

// Option configures a Handler at construction.
type Option func(*Handler)

// WithLogger overrides the logger used for "unknown event" warnings and
// swallowed-panic reports, instead of obslog.Default().
func WithLogger(l obslog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// New constructs a Handler for spec, owned by self: the value FireEvent
// dispatches when the caller omits event data (deferred.Nothing).
func New(spec Spec, self any, opts ...Option) *Handler {
	h := &Handler{
		oneShot:    make(map[string]*deferred.Deferred, len(spec.OneShot)),
		repeatable: make(map[string][]deferred.Handler, len(spec.Repeatable)),
		self:       self,
	}
	for _, n := range spec.OneShot {
		h.oneShot[n] = deferred.New()
	}
	for _, n := range spec.Repeatable {
		h.repeatable[n] = nil
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) logger() obslog.Logger {
	if h.log != nil {
		return h.log
	}
	return obslog.Default()
}

// Event returns the underlying Deferred backing a one-shot event name, and
// whether name is a registered one-shot event at all.
func (h *Handler) Event(name string) (*deferred.Deferred, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.oneShot[name]
	return d, ok
}

// BindEvent registers cb against name. Unknown names are logged and
// ignored, matching the original's tolerant behavior (fire_event/bind_event
// are called from many layers that don't all know each other's event
// sets).
func (h *Handler) BindEvent(name string, cb Callback) {
	wrapped := h.safeCallback(name, cb)

	h.mu.Lock()
	defer h.mu.Unlock()

	if d, ok := h.oneShot[name]; ok {
		d.AddBoth(wrapped)
		return
	}
	if _, ok := h.repeatable[name]; ok {
		h.repeatable[name] = append(h.repeatable[name], wrapped)
		return
	}
	h.logger().Warn("unknown event", obslog.Str("event", name))
}

// FireEvent dispatches data to name's listeners. Pass deferred.Nothing to
// dispatch the Handler's owner (self) instead, mirroring the original's
// "fire_event(name)" with no data argument. An error-shaped data value is
// converted to a *failure.Failure before dispatch.
func (h *Handler) FireEvent(name string, data any) {
	if data == deferred.Nothing {
		data = h.self
	}
	data = deferred.AsFailure(data)

	h.mu.Lock()
	oneShot, isOneShot := h.oneShot[name]
	var listeners []deferred.Handler
	isRepeatable := false
	if !isOneShot {
		listeners, isRepeatable = h.repeatable[name]
	}
	h.mu.Unlock()

	switch {
	case isOneShot:
		_ = oneShot.Callback(data)
	case isRepeatable:
		for _, cb := range listeners {
			_, _ = cb(data)
		}
	default:
		h.logger().Warn("unknown event", obslog.Str("event", name))
	}
}

// CopyManyTimesEvents copies other's repeatable-event listeners into this
// Handler. If names is empty, every one of other's repeatable events is
// copied. A name that collides with one of this Handler's one-shot events
// attaches each of other's listeners as a callback on that event's
// Deferred instead of appending to a (nonexistent) repeatable list.
func (h *Handler) CopyManyTimesEvents(other *Handler, names ...string) {
	other.mu.Lock()
	if len(names) == 0 {
		names = make([]string, 0, len(other.repeatable))
		for n := range other.repeatable {
			names = append(names, n)
		}
	}
	copies := make(map[string][]deferred.Handler, len(names))
	for _, n := range names {
		if cbs, ok := other.repeatable[n]; ok {
			copies[n] = append([]deferred.Handler(nil), cbs...)
		}
	}
	other.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	for n, cbs := range copies {
		if _, ok := h.repeatable[n]; ok {
			h.repeatable[n] = append(h.repeatable[n], cbs...)
			continue
		}
		if d, ok := h.oneShot[n]; ok {
			for _, cb := range cbs {
				d.AddCallback(cb, nil)
			}
		}
	}
}

// safeCallback wraps cb so a panic is recovered and logged rather than
// propagating, and the adapter always returns its input data unchanged.
// This is required for one-shot events, where BindEvent attaches it via
// AddBoth onto the backing Deferred.
func (h *Handler) safeCallback(name string, cb Callback) deferred.Handler {
	return func(data any) (any, error) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					h.logger().Error("unhandled panic in event callback",
						obslog.Str("event", name),
						obslog.Err(fmt.Errorf("%v", r)),
					)
				}
			}()
			cb(data)
		}()
		return data, nil
	}
}
