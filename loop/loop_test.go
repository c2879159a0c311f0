package loop

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSubmitRunsOnLoopGoroutine(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		_ = l.Run(ctx)
	}()

	var onLoop bool
	if err := l.Submit(func() {
		onLoop = l.IsLoopThread()
		wg.Done()
		cancel()
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	wg.Wait()
	if !onLoop {
		t.Error("expected submitted function to observe IsLoopThread() == true")
	}
}

func TestCallLaterFiresAfterDelay(t *testing.T) {
	l := New()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan time.Time, 1)
	start := time.Now()
	l.CallLater(20*time.Millisecond, func() {
		done <- time.Now()
	})

	go func() { _ = l.Run(ctx) }()

	select {
	case fired := <-done:
		if fired.Sub(start) < 10*time.Millisecond {
			t.Errorf("timer fired too early: %v", fired.Sub(start))
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timer never fired")
	}
}

func TestCallLaterCancel(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan struct{}, 1)
	timer := l.CallLater(20*time.Millisecond, func() {
		fired <- struct{}{}
	})
	if !timer.Cancel() {
		t.Fatal("expected first Cancel to succeed")
	}
	if timer.Cancel() {
		t.Error("expected second Cancel to report already canceled")
	}

	go func() { _ = l.Run(ctx) }()

	select {
	case <-fired:
		t.Error("canceled timer must not fire")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubmitAfterCloseFails(t *testing.T) {
	l := New()
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.Submit(func() {}); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
