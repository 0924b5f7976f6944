// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package agent serializes all MQTT protocol interactions through a single
// worker goroutine while exposing an asynchronous, thread-safe command API to
// any number of producers.
package agent

import (
	"log/slog"

	"github.com/absmach/mqttagent/packets"
	"github.com/absmach/mqttagent/topics"
)

// Agent is the per-connection context. Producer operations (Publish,
// Subscribe, Unsubscribe, Connect, Disconnect, Ping, Terminate) are safe for
// concurrent use; worker-scope operations (CommandLoop, ResumeSession,
// CancelAll) must be called from the single worker goroutine only.
type Agent struct {
	engine  Engine
	mailbox Mailbox
	opts    Options

	// Worker-owned state. No other goroutine may touch it.
	acks      *ackTable
	terminate bool

	router  *router
	logger  *slog.Logger
	metrics *Metrics
}

// New creates an agent driving the given engine. The engine's packet sink is
// claimed by the agent.
func New(engine Engine, opts Options) (*Agent, error) {
	if engine == nil {
		return nil, ErrBadParameter
	}
	opts.apply()

	a := &Agent{
		engine:  engine,
		mailbox: opts.Mailbox,
		opts:    opts,
		acks:    newAckTable(opts.MaxOutstandingAcks),
		router:  newRouter(),
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	engine.SetSink(a.onPacket)
	return a, nil
}

// Publish submits a publish command. The message block is caller-owned and
// must outlive completion; the agent assigns PacketID at dispatch for
// QoS > 0.
func (a *Agent) Publish(msg *Message, info CommandInfo) error {
	if msg == nil || msg.QoS > 2 {
		return ErrBadParameter
	}
	if err := topics.ValidateName(msg.Topic); err != nil {
		return ErrBadParameter
	}
	if a.opts.PublishLimiter != nil && !a.opts.PublishLimiter.Allow(msg.Topic) {
		return ErrRateLimited
	}

	return a.submit(info, func(cmd *Command) {
		cmd.kind = KindPublish
		cmd.publish = msg
	})
}

// Subscribe submits a subscribe command for one or more topic filters.
func (a *Agent) Subscribe(subs []packets.Topic, info CommandInfo) error {
	if len(subs) == 0 {
		return ErrBadParameter
	}
	for _, s := range subs {
		if s.QoS > 2 {
			return ErrBadParameter
		}
		if err := topics.ValidateFilter(s.Name); err != nil {
			return ErrBadParameter
		}
	}

	return a.submit(info, func(cmd *Command) {
		cmd.kind = KindSubscribe
		cmd.subs = subs
	})
}

// Unsubscribe submits an unsubscribe command for one or more topic filters.
func (a *Agent) Unsubscribe(filters []string, info CommandInfo) error {
	if len(filters) == 0 {
		return ErrBadParameter
	}
	for _, f := range filters {
		if err := topics.ValidateFilter(f); err != nil {
			return ErrBadParameter
		}
	}

	return a.submit(info, func(cmd *Command) {
		cmd.kind = KindUnsubscribe
		cmd.filters = filters
	})
}

// Connect submits a connect command. The options block is caller-owned and
// must outlive completion.
func (a *Agent) Connect(opts *ConnectOptions, info CommandInfo) error {
	if opts == nil || opts.ClientID == "" {
		return ErrBadParameter
	}

	return a.submit(info, func(cmd *Command) {
		cmd.kind = KindConnect
		cmd.connect = opts
	})
}

// Disconnect submits a disconnect command.
func (a *Agent) Disconnect(info CommandInfo) error {
	return a.submit(info, func(cmd *Command) {
		cmd.kind = KindDisconnect
	})
}

// Ping submits a ping command.
func (a *Agent) Ping(info CommandInfo) error {
	return a.submit(info, func(cmd *Command) {
		cmd.kind = KindPing
	})
}

// Terminate submits a terminate command. Dispatching it cancels every queued
// and pending command with ErrCommandAborted and stops the worker loop. The
// agent must not be reused afterwards; create a new one.
func (a *Agent) Terminate(info CommandInfo) error {
	return a.submit(info, func(cmd *Command) {
		cmd.kind = KindTerminate
	})
}

// Handle registers a handler for incoming publishes matching the topic
// filter. Handlers run on the worker goroutine. Publishes not claimed by any
// filter fall through to Options.OnPublish.
func (a *Agent) Handle(filter string, h PublishHandler) error {
	if h == nil {
		return ErrBadParameter
	}
	if err := topics.ValidateFilter(filter); err != nil {
		return ErrBadParameter
	}
	a.router.add(filter, h)
	return nil
}

// Unhandle removes the handler registered for the topic filter.
func (a *Agent) Unhandle(filter string) {
	a.router.remove(filter)
}

// submit allocates a record, populates it, and enqueues it for the worker.
func (a *Agent) submit(info CommandInfo, populate func(cmd *Command)) error {
	cmd, err := a.mailbox.Get(info.BlockTime)
	if err != nil {
		return err
	}

	populate(cmd)
	cmd.info = info

	if err := a.mailbox.Send(cmd, info.BlockTime); err != nil {
		if relErr := a.mailbox.Release(cmd); relErr != nil {
			a.logger.Warn("release after failed send", slog.Any("error", relErr))
		}
		return ErrSendFailed
	}

	a.metrics.CommandSubmitted(cmd.kind)
	return nil
}

// completeAndRelease finishes a command and returns its record to the pool.
func (a *Agent) completeAndRelease(cmd *Command, ret ReturnInfo) {
	kind := cmd.kind
	cmd.complete(ret)
	a.metrics.CommandCompleted(kind, ret.Err)
	if err := a.mailbox.Release(cmd); err != nil {
		a.logger.Warn("command release failed",
			slog.String("kind", kind.String()), slog.Any("error", err))
	}
}
