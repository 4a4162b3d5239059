package poll

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/openconfig/calicotest/workload"
	"github.com/openconfig/gnmi/errdiff"
)

var typha = workload.DeploymentIn("calico-system", "calico-typha")

// readyOn returns a checker that is ready on check n and counts its calls.
func readyOn(n int, calls *int) Checker {
	return CheckerFunc(func(_ context.Context, sel workload.Selector) error {
		*calls++
		if n > 0 && *calls >= n {
			return nil
		}
		return &workload.NotReadyError{Selector: sel, Status: fmt.Sprintf("check %d", *calls)}
	})
}

func TestAwaitReady(t *testing.T) {
	tests := []struct {
		desc      string
		readyOn   int
		policy    RetryPolicy
		wantCalls int
		wantErr   string
	}{{
		desc:      "ready first",
		readyOn:   1,
		policy:    RetryPolicy{MaxAttempts: 3},
		wantCalls: 1,
	}, {
		desc:      "ready on second",
		readyOn:   2,
		policy:    RetryPolicy{MaxAttempts: 3},
		wantCalls: 2,
	}, {
		desc:      "ready on last",
		readyOn:   3,
		policy:    RetryPolicy{MaxAttempts: 3, Interval: time.Millisecond},
		wantCalls: 3,
	}, {
		desc:      "never ready",
		policy:    RetryPolicy{MaxAttempts: 3},
		wantCalls: 3,
		wantErr:   "deployment/calico-system/calico-typha not ready after 3 attempts: deployment/calico-system/calico-typha not ready: check 3",
	}, {
		desc:      "single attempt",
		policy:    RetryPolicy{MaxAttempts: 1},
		wantCalls: 1,
		wantErr:   "not ready after 1 attempts",
	}, {
		desc:    "invalid policy",
		policy:  RetryPolicy{MaxAttempts: 0},
		wantErr: "max attempts 0 < 1",
	}, {
		desc:    "negative interval",
		policy:  RetryPolicy{MaxAttempts: 1, Interval: -time.Second},
		wantErr: "negative interval",
	}}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			var calls int
			err := AwaitReady(context.Background(), readyOn(tt.readyOn, &calls), typha, tt.policy)
			if s := errdiff.Substring(err, tt.wantErr); s != "" {
				t.Fatalf("AwaitReady() unexpected error: %s", s)
			}
			if calls != tt.wantCalls {
				t.Errorf("AwaitReady() made %d checks, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestAwaitReadyTimeoutError(t *testing.T) {
	queryErr := errors.New("connection refused")
	var calls int
	c := CheckerFunc(func(context.Context, workload.Selector) error {
		calls++
		return queryErr
	})
	err := AwaitReady(context.Background(), c, typha, RetryPolicy{MaxAttempts: 3})
	var terr *TimeoutError
	if !errors.As(err, &terr) {
		t.Fatalf("AwaitReady() got error %v, want *TimeoutError", err)
	}
	if terr.Attempts != 3 || terr.Selector != typha {
		t.Errorf("AwaitReady() got %+v", terr)
	}
	if !errors.Is(err, queryErr) {
		t.Errorf("AwaitReady() error %v does not wrap the last check error", err)
	}
	if calls != 3 {
		t.Errorf("AwaitReady() made %d checks, want 3", calls)
	}
}

func TestAwaitReadyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	c := CheckerFunc(func(context.Context, workload.Selector) error {
		calls++
		cancel()
		return errors.New("not yet")
	})
	err := AwaitReady(ctx, c, typha, RetryPolicy{MaxAttempts: 10, Interval: time.Hour})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("AwaitReady() got error %v, want context.Canceled", err)
	}
	var terr *TimeoutError
	if errors.As(err, &terr) {
		t.Errorf("AwaitReady() got *TimeoutError for canceled context")
	}
	if calls != 1 {
		t.Errorf("AwaitReady() made %d checks after cancel, want 1", calls)
	}
}

func TestAwaitAll(t *testing.T) {
	var checked []workload.Selector
	c := CheckerFunc(func(_ context.Context, sel workload.Selector) error {
		checked = append(checked, sel)
		if sel.Namespace == "calico-apiserver" {
			return errors.New("not found")
		}
		return nil
	})
	sels := []workload.Selector{
		workload.DeploymentIn("calico-system", "calico-kube-controllers"),
		typha,
		workload.DeploymentIn("calico-apiserver", "calico-apiserver"),
		workload.DaemonSetIn("calico-system", "calico-node"),
	}
	err := AwaitAll(context.Background(), c, RetryPolicy{MaxAttempts: 2}, sels...)
	if s := errdiff.Substring(err, "deployment/calico-apiserver/calico-apiserver not ready after 2 attempts"); s != "" {
		t.Fatalf("AwaitAll() unexpected error: %s", s)
	}
	if len(checked) != 4 {
		t.Errorf("AwaitAll() made %d checks, want 4: %v", len(checked), checked)
	}
}
