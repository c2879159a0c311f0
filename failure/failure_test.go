package failure

import (
	"errors"
	"testing"
)

func TestAppendAccumulates(t *testing.T) {
	f := New(errors.New("first"))
	f.Append(errors.New("second"))

	if f.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", f.Len())
	}
	if f.At(0).Value.Error() != "first" {
		t.Errorf("unexpected first record: %v", f.At(0).Value)
	}
	if f.At(1).Value.Error() != "second" {
		t.Errorf("unexpected second record: %v", f.At(1).Value)
	}
}

func TestAppendFailureExtendsAllRecords(t *testing.T) {
	a := New(errors.New("a1"))
	a.Append(errors.New("a2"))

	b := New(errors.New("b1"))
	b.Append(a)

	if b.Len() != 3 {
		t.Fatalf("expected 3 records after extending with another Failure, got %d", b.Len())
	}
}

func TestTraceEmptyWhenNoRecords(t *testing.T) {
	f := &Failure{}
	tr := f.Trace()
	if tr.Value != nil || tr.Kind != "" {
		t.Errorf("expected zero-value record, got %+v", tr)
	}
}

func TestTraceReturnsMostRecent(t *testing.T) {
	f := New(errors.New("first"))
	f.Append(errors.New("second"))

	if f.Trace().Value.Error() != "second" {
		t.Errorf("expected trace to return most recent record, got %v", f.Trace().Value)
	}
}

func TestLogIsIdempotent(t *testing.T) {
	f := New(errors.New("boom"))

	if f.Logged() {
		t.Fatal("new Failure should not be logged")
	}
	f.Log(nil)
	if !f.Logged() {
		t.Fatal("Log should set logged=true")
	}
	// second call must not panic nor double-emit; there is nothing
	// externally observable to assert beyond the flag staying true.
	f.Log(nil)
	if !f.Logged() {
		t.Fatal("logged flag should remain true after a second call")
	}
}

func TestClearResetsRecordsAndLogged(t *testing.T) {
	f := New(errors.New("boom"))
	f.Log(nil)
	f.Clear()

	if f.Len() != 0 {
		t.Errorf("expected 0 records after Clear, got %d", f.Len())
	}
	if f.Logged() {
		t.Error("Clear should reset the logged flag")
	}
}

func TestRaiseAllSingleRecord(t *testing.T) {
	f := New(errors.New("only"))
	err := f.RaiseAll(true)
	if err == nil || err.Error() != "only" {
		t.Fatalf("expected the single underlying error, got %v", err)
	}
	if f.Len() != 0 {
		t.Errorf("expected record to be popped, got %d remaining", f.Len())
	}
}

func TestRaiseAllMultipleRecordsReportsCount(t *testing.T) {
	f := New(errors.New("one"))
	f.Append(errors.New("two"))
	f.Append(errors.New("three"))

	err := f.RaiseAll(true)
	var dfe *ErrDeferredFailure
	if !errors.As(err, &dfe) {
		t.Fatalf("expected *ErrDeferredFailure, got %T: %v", err, err)
	}
	if dfe.Count != 3 {
		t.Errorf("expected count 3, got %d", dfe.Count)
	}
	// only the tail record is popped, regardless of first/last selection.
	if f.Len() != 2 {
		t.Errorf("expected 2 records remaining after RaiseAll, got %d", f.Len())
	}
}

func TestRaiseAllEmpty(t *testing.T) {
	f := &Failure{}
	err := f.RaiseAll(true)
	var dfe *ErrDeferredFailure
	if !errors.As(err, &dfe) || dfe.Count != 0 {
		t.Fatalf("expected zero-count ErrDeferredFailure, got %v", err)
	}
}

func TestIsMatchesAccumulatedRecords(t *testing.T) {
	sentinel := errors.New("sentinel")
	f := New(errors.New("unrelated"))
	f.Append(sentinel)

	if !f.Is(sentinel) {
		t.Error("expected Is to match the accumulated sentinel error")
	}
	if f.Is(errors.New("not present")) {
		t.Error("expected Is to not match an unrelated error")
	}
}

func TestSerializeCopiesRecordsAndLoggedFlag(t *testing.T) {
	f := New(errors.New("boom"))
	f.Log(nil)

	out := f.Serialize()
	if out.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", out.Len())
	}
	if !out.Logged() {
		t.Error("expected serialized Failure to preserve logged flag")
	}
	if len(out.At(0).Trace) == 0 {
		t.Error("expected a captured trace on the serialized record")
	}
}
