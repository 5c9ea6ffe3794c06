package tinybuild

import (
	"testing"
	"time"

	"github.com/aappleby/tinybuild/internal/value"
)

func TestFutureResolveAwait(t *testing.T) {
	f := NewFuture()
	go func() {
		time.Sleep(time.Millisecond)
		f.Resolve(value.IntValue(42))
	}()
	v, err := f.Await()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Int() != 42 {
		t.Errorf("Await() = %d, want 42", v.Int())
	}
}

func TestFutureResolveIsOnceOnly(t *testing.T) {
	f := NewFuture()
	f.Resolve(value.IntValue(1))
	f.Resolve(value.IntValue(2))
	v, _ := f.Await()
	if v.Int() != 1 {
		t.Errorf("second Resolve should be a no-op, got %d", v.Int())
	}
}

func TestFutureReject(t *testing.T) {
	f := NewFuture()
	f.Reject(errBuildFailed)
	if _, err := f.Await(); err == nil {
		t.Error("expected Await to surface the rejected error")
	}
}

func TestAwaitValueScalarPassthrough(t *testing.T) {
	v, err := AwaitValue(nil, value.IntValue(5))
	if err != nil || v.Int() != 5 {
		t.Errorf("AwaitValue on a scalar should pass through unchanged, got %v, %v", v, err)
	}
}

func TestAwaitValueFuture(t *testing.T) {
	f := NewFuture()
	f.Resolve(value.StringValue("done"))
	v, err := AwaitValue(nil, value.FutureValue(f))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Str() != "done" {
		t.Errorf("AwaitValue(future) = %q, want %q", v.Str(), "done")
	}
}
