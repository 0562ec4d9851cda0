package backends

import (
	"context"
	"testing"
	"time"
)

func TestLimiterCapsInFlight(t *testing.T) {
	policy := DefaultQueryPolicy()
	policy.MaxInFlight = map[BackendID]int{BackendCatalog: 1}
	l := NewInFlightLimiter(policy)

	if err := l.Acquire(context.Background(), BackendCatalog); err != nil {
		t.Fatal(err)
	}

	// Second acquire must block until the permit is released.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx, BackendCatalog); err == nil {
		t.Fatal("acquire past the cap should block until deadline")
	}

	l.Release(BackendCatalog)
	if err := l.Acquire(context.Background(), BackendCatalog); err != nil {
		t.Errorf("acquire after release: %v", err)
	}
}

func TestLimiterUnconfiguredBackendUnlimited(t *testing.T) {
	policy := DefaultQueryPolicy()
	policy.MaxInFlight = map[BackendID]int{}
	l := NewInFlightLimiter(policy)

	for i := 0; i < 100; i++ {
		if err := l.Acquire(context.Background(), BackendFullText); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
}

func TestLimiterReleaseWithoutAcquire(t *testing.T) {
	policy := DefaultQueryPolicy()
	policy.MaxInFlight = map[BackendID]int{BackendCatalog: 1}
	l := NewInFlightLimiter(policy)

	// Spurious release must not mint extra permits.
	l.Release(BackendCatalog)
	if err := l.Acquire(context.Background(), BackendCatalog); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx, BackendCatalog); err == nil {
		t.Error("cap should still hold after a spurious release")
	}
}
