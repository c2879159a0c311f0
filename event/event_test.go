package event

import (
	"errors"
	"sync"
	"testing"

	"github.com/joeycumines/go-reactor/deferred"
)

type owner struct{ name string }

func TestOneShotEventFiresOnce(t *testing.T) {
	h := New(Spec{OneShot: []string{"ready"}}, &owner{name: "conn"})

	var got any
	h.BindEvent("ready", func(data any) { got = data })

	h.FireEvent("ready", 42)
	if got != 42 {
		t.Fatalf("want 42, got %v", got)
	}

	d, ok := h.Event("ready")
	if !ok {
		t.Fatal("expected \"ready\" to be a registered one-shot event")
	}
	if err := d.Callback(43); !errors.Is(err, deferred.ErrAlreadyCalled) {
		t.Fatalf("want ErrAlreadyCalled firing a one-shot event twice, got %v", err)
	}
	if got != 42 {
		t.Fatalf("listener should not have been invoked again, got %v", got)
	}
}

func TestOneShotEventDispatchesSelfWhenDataOmitted(t *testing.T) {
	self := &owner{name: "conn-1"}
	h := New(Spec{OneShot: []string{"closed"}}, self)

	var got any
	h.BindEvent("closed", func(data any) { got = data })
	h.FireEvent("closed", deferred.Nothing)

	if got != self {
		t.Fatalf("want self (%v), got %v", self, got)
	}
}

func TestOneShotEventBoundAfterFireRunsImmediately(t *testing.T) {
	h := New(Spec{OneShot: []string{"ready"}}, nil)
	h.FireEvent("ready", "value")

	var got any
	h.BindEvent("ready", func(data any) { got = data })

	if got != "value" {
		t.Fatalf("want \"value\", got %v", got)
	}
}

func TestRepeatableEventFanOutInOrder(t *testing.T) {
	h := New(Spec{Repeatable: []string{"data_received"}}, nil)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		h.BindEvent("data_received", func(any) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}

	h.FireEvent("data_received", []byte("chunk"))
	h.FireEvent("data_received", []byte("chunk2"))

	mu.Lock()
	defer mu.Unlock()
	want := []int{0, 1, 2, 0, 1, 2}
	if len(order) != len(want) {
		t.Fatalf("want %v, got %v", want, order)
	}
	for i, v := range want {
		if order[i] != v {
			t.Fatalf("want %v, got %v", want, order)
		}
	}
}

func TestRepeatableEventSwallowsPanicFromOneListener(t *testing.T) {
	h := New(Spec{Repeatable: []string{"tick"}}, nil)

	var secondRan bool
	h.BindEvent("tick", func(any) { panic("boom") })
	h.BindEvent("tick", func(any) { secondRan = true })

	h.FireEvent("tick", nil)

	if !secondRan {
		t.Fatal("expected second listener to still run after the first panicked")
	}
}

func TestBindEventOnUnknownNameIsIgnored(t *testing.T) {
	h := New(Spec{OneShot: []string{"ready"}}, nil)

	var called bool
	h.BindEvent("not_a_real_event", func(any) { called = true })
	h.FireEvent("not_a_real_event", "x")

	if called {
		t.Fatal("unknown event should not dispatch to any listener")
	}
}

func TestCopyManyTimesEventsAppendsListeners(t *testing.T) {
	src := New(Spec{Repeatable: []string{"data_received"}}, nil)
	dst := New(Spec{Repeatable: []string{"data_received"}}, nil)

	var srcCalled, dstCalled bool
	src.BindEvent("data_received", func(any) { srcCalled = true })
	dst.BindEvent("data_received", func(any) { dstCalled = true })

	dst.CopyManyTimesEvents(src, "data_received")
	dst.FireEvent("data_received", nil)

	if !dstCalled {
		t.Fatal("expected dst's own listener to still fire")
	}
	if !srcCalled {
		t.Fatal("expected src's listener, copied onto dst, to fire when dst fires")
	}
}

func TestFireEventConvertsErrorToFailure(t *testing.T) {
	h := New(Spec{OneShot: []string{"failed"}}, nil)

	var got any
	h.BindEvent("failed", func(data any) { got = data })
	h.FireEvent("failed", errors.New("boom"))

	if _, ok := got.(interface{ Error() string }); !ok {
		t.Fatalf("want an error-shaped value (Failure), got %#v", got)
	}
}
