package tinybuild

import (
	"bytes"
	"context"
	"testing"

	"github.com/aappleby/tinybuild/internal/value"
)

func TestRunShellSuccessCapturesStdout(t *testing.T) {
	task := &Task{}
	var buf bytes.Buffer
	ctx := withTaskOutput(context.Background(), &bufferedOutput{})
	_ = buf
	if err := runShell(ctx, task, ".", "echo hello"); err != nil {
		t.Fatalf("runShell: %v", err)
	}
	if task.Stdout == "" {
		t.Error("expected captured stdout to be non-empty")
	}
}

func TestRunShellFailureSetsReturnCode(t *testing.T) {
	task := &Task{}
	ctx := withTaskOutput(context.Background(), &bufferedOutput{})
	err := runShell(ctx, task, ".", "exit 3")
	if err == nil {
		t.Fatal("expected a CommandFailed error for a nonzero exit")
	}
	be, ok := err.(*value.BuildError)
	if !ok || be.Kind != value.CommandFailed {
		t.Fatalf("expected CommandFailed, got %v", err)
	}
	if task.ReturnCode != 3 {
		t.Errorf("ReturnCode = %d, want 3", task.ReturnCode)
	}
}

func TestBufferedOutputFlushIsolatesTasks(t *testing.T) {
	out := NewOutput()
	var sink bytes.Buffer
	out.stdout = &sink

	a := &bufferedOutput{}
	b := &bufferedOutput{}
	a.Stdout().Write([]byte("A"))
	b.Stdout().Write([]byte("B"))
	a.flushTo(out)
	b.flushTo(out)

	if sink.String() != "AB" {
		t.Errorf("flush order = %q, want %q", sink.String(), "AB")
	}
}
