// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"math"
	"time"
)

// Forever makes a mailbox operation block indefinitely.
const Forever time.Duration = math.MaxInt64

// Mailbox moves command records between producers and the worker and serves
// as the command allocator. All four operations must be safe under concurrent
// invocation from any number of producers and one worker. Send and Recv must
// preserve FIFO order for records sent from a single producer.
type Mailbox interface {
	// Send transfers ownership of the record to the worker. A zero timeout
	// means non-blocking.
	Send(cmd *Command, timeout time.Duration) error

	// Recv returns the next queued record, or ErrRecvTimeout.
	Recv(timeout time.Duration) (*Command, error)

	// Get allocates a free command record, or returns ErrNoMemory.
	Get(timeout time.Duration) (*Command, error)

	// Release returns a record to the allocator. Releasing a record twice
	// returns ErrDoubleRelease without corrupting the pool.
	Release(cmd *Command) error
}

// ChannelMailbox is the default Mailbox: a buffered channel for the command
// queue and a second buffered channel acting as a fixed-size record pool, so
// the steady state allocates nothing.
type ChannelMailbox struct {
	queue chan *Command
	pool  chan *Command
}

// NewChannelMailbox creates a mailbox with the given queue depth and pool
// size. Non-positive values fall back to the defaults.
func NewChannelMailbox(queueSize, poolSize int) *ChannelMailbox {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}

	m := &ChannelMailbox{
		queue: make(chan *Command, queueSize),
		pool:  make(chan *Command, poolSize),
	}
	for i := 0; i < poolSize; i++ {
		m.pool <- &Command{}
	}
	return m
}

// Send enqueues the record for the worker.
func (m *ChannelMailbox) Send(cmd *Command, timeout time.Duration) error {
	if cmd == nil {
		return ErrBadParameter
	}

	switch timeout {
	case 0:
		select {
		case m.queue <- cmd:
			return nil
		default:
			return ErrSendFailed
		}
	case Forever:
		m.queue <- cmd
		return nil
	default:
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case m.queue <- cmd:
			return nil
		case <-t.C:
			return ErrSendFailed
		}
	}
}

// Recv dequeues the next record.
func (m *ChannelMailbox) Recv(timeout time.Duration) (*Command, error) {
	switch timeout {
	case 0:
		select {
		case cmd := <-m.queue:
			return cmd, nil
		default:
			return nil, ErrRecvTimeout
		}
	case Forever:
		return <-m.queue, nil
	default:
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case cmd := <-m.queue:
			return cmd, nil
		case <-t.C:
			return nil, ErrRecvTimeout
		}
	}
}

// Get allocates a record from the pool.
func (m *ChannelMailbox) Get(timeout time.Duration) (*Command, error) {
	var cmd *Command

	switch timeout {
	case 0:
		select {
		case cmd = <-m.pool:
		default:
			return nil, ErrNoMemory
		}
	case Forever:
		cmd = <-m.pool
	default:
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case cmd = <-m.pool:
		case <-t.C:
			return nil, ErrNoMemory
		}
	}

	cmd.released.Store(false)
	return cmd, nil
}

// Release resets the record and returns it to the pool.
func (m *ChannelMailbox) Release(cmd *Command) error {
	if cmd == nil {
		return ErrBadParameter
	}
	if !cmd.released.CompareAndSwap(false, true) {
		return ErrDoubleRelease
	}

	cmd.reset()
	m.pool <- cmd
	return nil
}
