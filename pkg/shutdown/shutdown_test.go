package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestShutdownRunsHooksInReverseOrder(t *testing.T) {
	m := New(time.Second)

	var order []string
	m.Register(func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	m.Register(func(ctx context.Context) error {
		order = append(order, "second")
		return nil
	})

	if errs := m.Shutdown(); len(errs) != 0 {
		t.Fatalf("Unexpected errors: %v", errs)
	}
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Errorf("Hooks should run LIFO, got %v", order)
	}
}

func TestShutdownCollectsErrorsWithoutStopping(t *testing.T) {
	m := New(time.Second)

	ran := false
	m.Register(func(ctx context.Context) error {
		ran = true
		return nil
	})
	m.Register(func(ctx context.Context) error {
		return errors.New("hook failed")
	})

	errs := m.Shutdown()
	if len(errs) != 1 {
		t.Fatalf("Expected one error, got %v", errs)
	}
	if !ran {
		t.Error("A failing hook must not stop the remaining hooks")
	}
}

type fakeCloser struct {
	closed bool
	err    error
}

func (f *fakeCloser) Close() error {
	f.closed = true
	return f.err
}

func TestCloseResource(t *testing.T) {
	c := &fakeCloser{}
	if err := CloseResource(c, "thing")(context.Background()); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if !c.closed {
		t.Error("Closer was not invoked")
	}

	failing := &fakeCloser{err: errors.New("nope")}
	if err := CloseResource(failing, "thing")(context.Background()); err == nil {
		t.Error("Close error should propagate")
	}
}
