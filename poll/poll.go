// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package poll waits for workloads to become ready by checking them at a
// fixed interval until a retry budget is spent.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openconfig/calicotest/workload"
	log "k8s.io/klog/v2"
)

// A RetryPolicy bounds a wait.  MaxAttempts is the total number of checks,
// including the first.  Interval is the pause between checks and may be 0.
type RetryPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPolicy is used for workloads expected to come up quickly.
var DefaultPolicy = RetryPolicy{Interval: 5 * time.Second, MaxAttempts: 24}

// Validate returns an error if p can not be used.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("invalid retry policy: max attempts %d < 1", p.MaxAttempts)
	}
	if p.Interval < 0 {
		return fmt.Errorf("invalid retry policy: negative interval %v", p.Interval)
	}
	return nil
}

// A Checker checks a single workload.  Check returns nil if the workload is
// ready.
type Checker interface {
	Check(ctx context.Context, sel workload.Selector) error
}

// A CheckerFunc is a function used as a Checker.
type CheckerFunc func(ctx context.Context, sel workload.Selector) error

// Check implements Checker.
func (f CheckerFunc) Check(ctx context.Context, sel workload.Selector) error {
	return f(ctx, sel)
}

// TimeoutError is returned when a workload is not ready after the last
// attempt.
type TimeoutError struct {
	Selector workload.Selector
	Attempts int
	Err      error // the result of the last check
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s not ready after %d attempts: %v", e.Selector, e.Attempts, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// AwaitReady checks sel with c until it is ready.  At most p.MaxAttempts
// checks are made, p.Interval apart.  An error returned by a check counts
// as a failed attempt.  If no check succeeds a *TimeoutError is returned.
// If ctx is done first ctx.Err() is returned.
func AwaitReady(ctx context.Context, c Checker, sel workload.Selector, p RetryPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	log.Infof("Waiting on %s to be ready (%d attempts, %v apart)", sel, p.MaxAttempts, p.Interval)
	attempts := 0
	var last error
	op := func() error {
		attempts++
		last = c.Check(ctx, sel)
		return last
	}
	notify := func(err error, next time.Duration) {
		log.V(1).Infof("Attempt %d/%d: %v", attempts, p.MaxAttempts, err)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Interval), uint64(p.MaxAttempts-1)), ctx)
	err := backoff.RetryNotify(op, b, notify)
	switch {
	case err == nil:
		log.Infof("%s ready after %d attempts", sel, attempts)
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return fmt.Errorf("waiting on %s: %w", sel, err)
	default:
		return &TimeoutError{Selector: sel, Attempts: attempts, Err: last}
	}
}

// AwaitAll waits on each of sels in order with the same policy and stops at
// the first that is not ready.
func AwaitAll(ctx context.Context, c Checker, p RetryPolicy, sels ...workload.Selector) error {
	for _, sel := range sels {
		if err := AwaitReady(ctx, c, sel, p); err != nil {
			return err
		}
	}
	return nil
}
