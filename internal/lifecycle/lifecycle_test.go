package lifecycle

import (
	"context"
	"errors"
	"testing"
)

type fakeComponent struct {
	initErr     error
	shutdownErr error
	healthErr   error
	initialized bool
	shutdown    bool
}

func (f *fakeComponent) Initialize(ctx context.Context) error {
	f.initialized = true
	return f.initErr
}

func (f *fakeComponent) Shutdown(ctx context.Context) error {
	f.shutdown = true
	return f.shutdownErr
}

func (f *fakeComponent) Health(ctx context.Context) error {
	return f.healthErr
}

func TestStartAllInitializesInOrder(t *testing.T) {
	var order []string
	r := NewRegistry()
	r.Register("first", &orderTrackingComponent{name: "first", order: &order})
	r.Register("second", &orderTrackingComponent{name: "second", order: &order})

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll() error = %v", err)
	}

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("start order = %v, want [first second]", order)
	}
}

func TestStopAllStopsInReverseOrder(t *testing.T) {
	var order []string
	r := NewRegistry()
	r.Register("first", &orderTrackingComponent{name: "first", order: &order})
	r.Register("second", &orderTrackingComponent{name: "second", order: &order})

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	order = nil

	r.StopAll(context.Background())

	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Errorf("stop order = %v, want [second first]", order)
	}
}

func TestStartAllAbortsOnFirstFailure(t *testing.T) {
	r := NewRegistry()
	failing := &fakeComponent{initErr: errors.New("boom")}
	never := &fakeComponent{}
	r.Register("failing", failing)
	r.Register("never", never)

	if err := r.StartAll(context.Background()); err == nil {
		t.Fatal("StartAll() expected error")
	}
	if never.initialized {
		t.Error("never should not have been initialized once failing errored")
	}
}

func TestStopAllCollectsAllErrors(t *testing.T) {
	r := NewRegistry()
	r.Register("first", &fakeComponent{shutdownErr: errors.New("first failed")})
	r.Register("second", &fakeComponent{shutdownErr: errors.New("second failed")})

	errs := r.StopAll(context.Background())
	if len(errs) != 2 {
		t.Fatalf("StopAll() returned %d errors, want 2", len(errs))
	}
}

func TestHealthReturnsFirstFailure(t *testing.T) {
	r := NewRegistry()
	r.Register("healthy", &fakeComponent{})
	r.Register("sick", &fakeComponent{healthErr: errors.New("sick")})

	if err := r.Health(context.Background()); err == nil {
		t.Error("Health() expected error from sick component")
	}
}

type orderTrackingComponent struct {
	name  string
	order *[]string
}

func (o *orderTrackingComponent) Initialize(ctx context.Context) error {
	*o.order = append(*o.order, o.name)
	return nil
}

func (o *orderTrackingComponent) Shutdown(ctx context.Context) error {
	*o.order = append(*o.order, o.name)
	return nil
}

func (o *orderTrackingComponent) Health(ctx context.Context) error { return nil }
