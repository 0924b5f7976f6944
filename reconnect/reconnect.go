// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package reconnect supervises an agent's worker loop, re-establishing the
// broker session with a circuit breaker and exponential backoff whenever the
// transport fails.
package reconnect

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/sony/gobreaker"

	"github.com/absmach/mqttagent/agent"
	"github.com/absmach/mqttagent/engine"
)

// Runner errors.
var (
	ErrNilAgent  = errors.New("agent cannot be nil")
	ErrNilEngine = errors.New("engine cannot be nil")
	ErrNilDialer = errors.New("dialer cannot be nil")
)

// Default backoff bounds.
const (
	DefaultBackoffMin = time.Second
	DefaultBackoffMax = 2 * time.Minute
)

// Dialer opens a fresh broker connection.
type Dialer func(ctx context.Context) (net.Conn, error)

// Config configures a Runner.
type Config struct {
	// Connect is the CONNECT issued on every (re)connection attempt.
	Connect *agent.ConnectOptions

	// BackoffMin and BackoffMax bound the exponential reconnect delay.
	BackoffMin time.Duration
	BackoffMax time.Duration

	// BreakerMaxFailures trips the dial circuit breaker after this many
	// consecutive failures; the breaker then rejects dials for
	// BreakerCooldown before probing again. Zero selects 5.
	BreakerMaxFailures uint32
	BreakerCooldown    time.Duration

	// OnSessionDown is invoked after a session is lost, before the first
	// reconnect attempt. Optional.
	OnSessionDown func(err error)

	// OnSessionUp is invoked after a successful connect and resume,
	// reporting the broker's session-present flag. Callers typically
	// re-subscribe here when the flag is false. Optional.
	OnSessionUp func(sessionPresent bool)

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (c *Config) apply() {
	if c.BackoffMin <= 0 {
		c.BackoffMin = DefaultBackoffMin
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = DefaultBackoffMax
	}
	if c.BreakerMaxFailures == 0 {
		c.BreakerMaxFailures = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Runner owns the worker goroutine's lifecycle: dial, connect, resume, run
// the command loop, and start over when the session breaks. Run must be the
// only goroutine invoking worker-scope agent operations.
type Runner struct {
	agent   *agent.Agent
	engine  *engine.Engine
	dial    Dialer
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewRunner creates a runner for the given agent and engine.
func NewRunner(a *agent.Agent, e *engine.Engine, dial Dialer, cfg Config) (*Runner, error) {
	if a == nil {
		return nil, ErrNilAgent
	}
	if e == nil {
		return nil, ErrNilEngine
	}
	if dial == nil {
		return nil, ErrNilDialer
	}
	if cfg.Connect == nil || cfg.Connect.ClientID == "" {
		return nil, agent.ErrBadParameter
	}
	cfg.apply()

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "mqtt-dial",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
	})

	return &Runner{
		agent:   a,
		engine:  e,
		dial:    dial,
		cfg:     cfg,
		breaker: breaker,
		logger:  cfg.Logger,
	}, nil
}

// Run establishes the session and drives the agent's command loop until the
// agent terminates or the context is cancelled. Transport failures trigger
// reconnection with session resumption.
func (r *Runner) Run(ctx context.Context) error {
	delay := r.cfg.BackoffMin

	for {
		sessionPresent, err := r.establish(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("session establish failed",
				slog.Any("error", err), slog.Duration("retry_in", delay))
			if !sleep(ctx, delay) {
				return ctx.Err()
			}
			delay = nextDelay(delay, r.cfg.BackoffMax)
			continue
		}
		delay = r.cfg.BackoffMin

		if err := r.agent.ResumeSession(sessionPresent); err != nil {
			r.logger.Warn("session resume failed", slog.Any("error", err))
			continue
		}
		if r.cfg.OnSessionUp != nil {
			r.cfg.OnSessionUp(sessionPresent)
		}

		err = r.agent.CommandLoop(ctx)
		if err == nil {
			// Terminated.
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		r.logger.Warn("session down", slog.Any("error", err))
		if r.cfg.OnSessionDown != nil {
			r.cfg.OnSessionDown(err)
		}
	}
}

// establish dials through the circuit breaker and performs the handshake.
func (r *Runner) establish(ctx context.Context) (bool, error) {
	v, err := r.breaker.Execute(func() (interface{}, error) {
		return r.dial(ctx)
	})
	if err != nil {
		return false, err
	}
	conn := v.(net.Conn)

	r.engine.Reset(conn)
	sessionPresent, err := r.engine.Connect(r.cfg.Connect)
	if err != nil {
		conn.Close()
		return false, err
	}
	return sessionPresent, nil
}

func nextDelay(current, max time.Duration) time.Duration {
	current *= 2
	if current > max {
		return max
	}
	return current
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
