// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package reconnect

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/absmach/mqttagent/agent"
	"github.com/absmach/mqttagent/engine"
)

func testRunnerParts(t *testing.T) (*agent.Agent, *engine.Engine) {
	t.Helper()
	eng := engine.New(nil, engine.Options{})
	a, err := agent.New(eng, agent.Options{EventQueueWait: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("new agent failed: %v", err)
	}
	return a, eng
}

func TestNewRunnerValidation(t *testing.T) {
	a, eng := testRunnerParts(t)
	dial := func(context.Context) (net.Conn, error) { return nil, errors.New("no") }
	connect := &agent.ConnectOptions{ClientID: "c1"}

	if _, err := NewRunner(nil, eng, dial, Config{Connect: connect}); !errors.Is(err, ErrNilAgent) {
		t.Errorf("nil agent error = %v", err)
	}
	if _, err := NewRunner(a, nil, dial, Config{Connect: connect}); !errors.Is(err, ErrNilEngine) {
		t.Errorf("nil engine error = %v", err)
	}
	if _, err := NewRunner(a, eng, nil, Config{Connect: connect}); !errors.Is(err, ErrNilDialer) {
		t.Errorf("nil dialer error = %v", err)
	}
	if _, err := NewRunner(a, eng, dial, Config{}); !errors.Is(err, agent.ErrBadParameter) {
		t.Errorf("missing connect options error = %v", err)
	}

	if _, err := NewRunner(a, eng, dial, Config{Connect: connect}); err != nil {
		t.Errorf("valid runner creation failed: %v", err)
	}
}

func TestRunRetriesUntilContextCancelled(t *testing.T) {
	a, eng := testRunnerParts(t)

	var attempts atomic.Int32
	dial := func(context.Context) (net.Conn, error) {
		attempts.Add(1)
		return nil, errors.New("connection refused")
	}

	r, err := NewRunner(a, eng, dial, Config{
		Connect:    &agent.ConnectOptions{ClientID: "c1"},
		BackoffMin: time.Millisecond,
		BackoffMax: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new runner failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = r.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("run returned %v, want context.DeadlineExceeded", err)
	}
	if attempts.Load() < 2 {
		t.Errorf("expected multiple dial attempts, got %d", attempts.Load())
	}
}

func TestNextDelayCapped(t *testing.T) {
	if d := nextDelay(time.Second, 3*time.Second); d != 2*time.Second {
		t.Errorf("nextDelay doubled to %v, want 2s", d)
	}
	if d := nextDelay(2*time.Second, 3*time.Second); d != 3*time.Second {
		t.Errorf("nextDelay capped at %v, want 3s", d)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	a, eng := testRunnerParts(t)

	var attempts atomic.Int32
	dial := func(context.Context) (net.Conn, error) {
		attempts.Add(1)
		return nil, errors.New("connection refused")
	}

	r, err := NewRunner(a, eng, dial, Config{
		Connect:            &agent.ConnectOptions{ClientID: "c1"},
		BackoffMin:         time.Millisecond,
		BackoffMax:         time.Millisecond,
		BreakerMaxFailures: 2,
		BreakerCooldown:    time.Minute,
	})
	if err != nil {
		t.Fatalf("new runner failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	// The breaker opens after two consecutive failures; subsequent attempts
	// are rejected without invoking the dialer.
	if got := attempts.Load(); got != 2 {
		t.Errorf("dialer invoked %d times, want 2 before the breaker opens", got)
	}
}
