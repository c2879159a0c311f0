package deferred

import (
	"sync"

	"github.com/joeycumines/go-reactor/failure"
)

// MultiDeferred aggregates a sequence or keyed collection of values, some of
// which may themselves be *Deferred, settling once every child has and the
// collection has been locked.
//
// Go has no dynamic dict-or-list runtime type to infer the container shape
// from the first value handed in; use NewMultiDeferred for sequence
// (Append/UpdateSlice) mode and NewMultiDeferredMap for keyed (Set/Update)
// mode instead.
type MultiDeferred struct {
	mu      sync.Mutex
	isList  bool
	keys    []any
	values  map[any]any
	pending map[any]struct{}
	nextIdx int
	locked  bool

	fireOnFirstErrback bool
	handleValue        func(v any) any

	errs *failure.Failure
	d    *Deferred
}

// MultiOption configures a MultiDeferred at construction.
type MultiOption func(*MultiDeferred)

// WithFireOnFirstErrback makes the MultiDeferred settle with its
// accumulated Failure, instead of the completed container, if any child
// failed.
func WithFireOnFirstErrback(v bool) MultiOption {
	return func(m *MultiDeferred) { m.fireOnFirstErrback = v }
}

// WithHandleValue installs a hook invoked with every non-async settled
// value as it is added; if the hook returns a different value, that value
// is re-added at the same key in its place.
func WithHandleValue(f func(v any) any) MultiOption {
	return func(m *MultiDeferred) { m.handleValue = f }
}

func newMultiDeferred(isList bool, opts ...MultiOption) *MultiDeferred {
	m := &MultiDeferred{
		isList:  isList,
		values:  make(map[any]any),
		pending: make(map[any]struct{}),
		errs:    &failure.Failure{},
		d:       New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewMultiDeferred constructs a sequence-mode MultiDeferred: values are
// added with Append/UpdateSlice and the settled container is a []any in
// append order.
func NewMultiDeferred(opts ...MultiOption) *MultiDeferred {
	return newMultiDeferred(true, opts...)
}

// NewMultiDeferredMap constructs a keyed-mode MultiDeferred: values are
// added with Set/Update and the settled container is a map[string]any.
func NewMultiDeferredMap(opts ...MultiOption) *MultiDeferred {
	return newMultiDeferred(false, opts...)
}

// MultiAsync is a one-line convenience that builds a sequence-mode
// MultiDeferred over items, locks it immediately, and returns the
// resulting Deferred.
func MultiAsync(items []any, opts ...MultiOption) *Deferred {
	m := NewMultiDeferred(opts...)
	_ = m.UpdateSlice(items)
	_ = m.Lock()
	return m.Deferred()
}

// MultiAsyncMap is the keyed-mode counterpart of MultiAsync.
func MultiAsyncMap(items map[string]any, opts ...MultiOption) *Deferred {
	m := NewMultiDeferredMap(opts...)
	_ = m.Update(items)
	_ = m.Lock()
	return m.Deferred()
}

// Deferred returns the Deferred this MultiDeferred will settle once locked
// and every child has resolved.
func (m *MultiDeferred) Deferred() *Deferred {
	return m.d
}

// Append adds v at the next sequence index. Only valid in sequence mode.
func (m *MultiDeferred) Append(v any) error {
	if !m.isList {
		return &ErrProgrammingError{Msg: "multideferred: cannot Append to a keyed MultiDeferred"}
	}
	m.mu.Lock()
	key := m.nextIdx
	m.nextIdx++
	m.mu.Unlock()
	return m.add(key, v)
}

// UpdateSlice appends every item of items, in order. Only valid in sequence
// mode.
func (m *MultiDeferred) UpdateSlice(items []any) error {
	for _, v := range items {
		if err := m.Append(v); err != nil {
			return err
		}
	}
	return nil
}

// Set adds v under key. Only valid in keyed mode.
func (m *MultiDeferred) Set(key string, v any) error {
	if m.isList {
		return &ErrProgrammingError{Msg: "multideferred: cannot Set a key on a sequence MultiDeferred"}
	}
	return m.add(key, v)
}

// Update adds every key/value pair of items. Only valid in keyed mode.
func (m *MultiDeferred) Update(items map[string]any) error {
	for k, v := range items {
		if err := m.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Lock freezes the MultiDeferred against further additions. Locking twice
// is a programming error. If no children are still pending, the Deferred
// settles immediately.
func (m *MultiDeferred) Lock() error {
	m.mu.Lock()
	if m.locked {
		m.mu.Unlock()
		return &ErrProgrammingError{Msg: "multideferred: locked twice"}
	}
	m.locked = true
	empty := len(m.pending) == 0
	m.mu.Unlock()
	if empty {
		m.finish()
	}
	return nil
}

func isAsyncValue(v any) bool {
	_, ok := v.(*Deferred)
	return ok
}

// add implements _add: lift v, recursively wrap nested collections as
// locked child MultiDeferreds, run the handle_value hook if configured,
// store the (possibly still-pending) value, and register a continuation if
// it is async.
func (m *MultiDeferred) add(key any, v any) error {
	m.mu.Lock()
	if m.locked {
		m.mu.Unlock()
		return &ErrProgrammingError{Msg: "multideferred: cannot add once locked"}
	}
	m.mu.Unlock()

	lifted := MaybeAsync(v)

	switch t := lifted.(type) {
	case map[string]any:
		lifted = m.wrapNestedMap(t)
	case []any:
		lifted = m.wrapNestedList(t)
	}

	if !isAsyncValue(lifted) && m.handleValue != nil {
		if val := m.handleValue(lifted); val != lifted {
			return m.add(key, val)
		}
	}

	m.setItem(key, lifted)

	if inner, ok := lifted.(*Deferred); ok {
		m.mu.Lock()
		m.pending[key] = struct{}{}
		m.mu.Unlock()
		inner.AddBoth(func(res any) (any, error) {
			m.deferredDone(key, res)
			return res, nil
		})
	}
	return nil
}

func (m *MultiDeferred) wrapNestedMap(v map[string]any) any {
	child := NewMultiDeferredMap(WithFireOnFirstErrback(m.fireOnFirstErrback), WithHandleValue(m.handleValue))
	for k, vv := range v {
		_ = child.Set(k, vv)
	}
	_ = child.Lock()
	return MaybeAsync(child.Deferred())
}

func (m *MultiDeferred) wrapNestedList(v []any) any {
	child := NewMultiDeferred(WithFireOnFirstErrback(m.fireOnFirstErrback), WithHandleValue(m.handleValue))
	for _, vv := range v {
		_ = child.Append(vv)
	}
	_ = child.Lock()
	return MaybeAsync(child.Deferred())
}

func (m *MultiDeferred) setItem(key any, v any) {
	m.mu.Lock()
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
	if f, ok := v.(*failure.Failure); ok && f != nil {
		m.errs.Append(f)
	}
	m.mu.Unlock()
}

func (m *MultiDeferred) deferredDone(key any, result any) {
	m.mu.Lock()
	delete(m.pending, key)
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = result
	if f, ok := result.(*failure.Failure); ok && f != nil {
		m.errs.Append(f)
	}
	ready := m.locked && len(m.pending) == 0 && !m.d.Called()
	m.mu.Unlock()
	if ready {
		m.finish()
	}
}

func (m *MultiDeferred) finish() {
	m.mu.Lock()
	if !m.locked || len(m.pending) > 0 || m.d.Called() {
		m.mu.Unlock()
		return
	}
	var result any
	if m.fireOnFirstErrback && m.errs.Len() > 0 {
		result = m.errs
	} else {
		result = m.buildContainer()
	}
	m.mu.Unlock()
	_ = m.d.Callback(result)
}

func (m *MultiDeferred) buildContainer() any {
	if m.isList {
		out := make([]any, len(m.keys))
		for i, k := range m.keys {
			out[i] = m.values[k]
		}
		return out
	}
	out := make(map[string]any, len(m.keys))
	for _, k := range m.keys {
		out[k.(string)] = m.values[k]
	}
	return out
}
