package events

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"
	"time"

	"github.com/effective-security/xlog"
	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolrouter", "events")

// Listener receives events.
// Listeners are used as set keys and must be comparable values,
// usually pointers. Emitter.On rejects a listener that is not comparable.
type Listener interface {
	OnEvent(ctx context.Context, e *Event) error
}

type funcListener struct {
	fn func(ctx context.Context, e *Event) error
}

func (f *funcListener) OnEvent(ctx context.Context, e *Event) error {
	return f.fn(ctx, e)
}

// Func adapts a function into a Listener.
// Keep the returned value to remove the listener with Off.
func Func(fn func(ctx context.Context, e *Event) error) Listener {
	return &funcListener{fn: fn}
}

type listenerSet = orderedmap.OrderedMap[Listener, struct{}]

// Emitter dispatches events to listeners in registration order.
// Emitter is safe for concurrent use.
type Emitter struct {
	lock      sync.RWMutex
	listeners map[Kind]*listenerSet
}

// NewEmitter returns an Emitter with no listeners
func NewEmitter() *Emitter {
	return &Emitter{
		listeners: map[Kind]*listenerSet{},
	}
}

// On subscribes the listener to the kind, use KindAll for every event.
// Adding the same listener twice is a no-op.
// Returns false if the listener is nil or not comparable.
func (m *Emitter) On(kind Kind, l Listener) bool {
	if l == nil {
		return false
	}
	if !isComparable(l) {
		logger.KV(xlog.ERROR, "reason", "listener_not_comparable", "kind", kind, "listener", fmt.Sprintf("%T", l))
		return false
	}
	m.lock.Lock()
	defer m.lock.Unlock()

	set := m.listeners[kind]
	if set == nil {
		set = orderedmap.New[Listener, struct{}]()
		m.listeners[kind] = set
	}
	if _, ok := set.Get(l); !ok {
		set.Set(l, struct{}{})
	}
	return true
}

// Off removes the listener, returns false if it was not subscribed
func (m *Emitter) Off(kind Kind, l Listener) bool {
	if !isComparable(l) {
		return false
	}
	m.lock.Lock()
	defer m.lock.Unlock()

	set := m.listeners[kind]
	if set == nil {
		return false
	}
	_, ok := set.Delete(l)
	if set.Len() == 0 {
		delete(m.listeners, kind)
	}
	return ok
}

func isComparable(l Listener) bool {
	return l != nil && reflect.ValueOf(l).Comparable()
}

// ListenerCount returns the number of listeners for the kind
func (m *Emitter) ListenerCount(kind Kind) int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if set := m.listeners[kind]; set != nil {
		return set.Len()
	}
	return 0
}

// Emit delivers the event synchronously to the listeners of its kind,
// then to the KindAll listeners.
// Listener errors and panics are logged and never reach the caller.
func (m *Emitter) Emit(ctx context.Context, e *Event) {
	if m == nil || e == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	for _, l := range m.snapshot(e.Kind) {
		m.dispatch(ctx, l, e)
	}
}

func (m *Emitter) snapshot(kind Kind) []Listener {
	m.lock.RLock()
	defer m.lock.RUnlock()

	var list []Listener
	for _, k := range []Kind{kind, KindAll} {
		set := m.listeners[k]
		if set == nil {
			continue
		}
		for pair := set.Oldest(); pair != nil; pair = pair.Next() {
			list = append(list, pair.Key)
		}
		if kind == KindAll {
			break
		}
	}
	return list
}

func (m *Emitter) dispatch(ctx context.Context, l Listener, e *Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"reason", "listener_panic",
				"event", e.Kind,
				"id", e.ID,
				"err", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()

	if err := l.OnEvent(ctx, e); err != nil {
		logger.ContextKV(ctx, xlog.ERROR,
			"reason", "listener_failed",
			"event", e.Kind,
			"id", e.ID,
			"err", err.Error(),
		)
	}
}
