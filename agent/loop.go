// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"errors"
)

// CommandLoop runs the worker: it pulls one command at a time, dispatches
// it, and services the protocol engine between commands. It returns nil
// after a Terminate command, ctx.Err() on context cancellation, and the
// underlying error when the session breaks (the caller is expected to
// reconnect and call ResumeSession).
//
// Only one goroutine may run the loop for a given agent, and completion
// callbacks and publish sinks are invoked from it exclusively.
func (a *Agent) CommandLoop(ctx context.Context) error {
	if a.terminate {
		return ErrTerminated
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		cmd, err := a.mailbox.Recv(a.opts.EventQueueWait)
		if err != nil {
			if !errors.Is(err, ErrRecvTimeout) {
				return err
			}
			// Idle: drive the engine for one I/O cycle instead.
			if err := a.dispatch(&Command{kind: KindProcessLoop}); err != nil && fatal(err) {
				return err
			}
			continue
		}

		err = a.dispatch(cmd)
		if a.terminate {
			return nil
		}
		if err != nil && fatal(err) {
			return err
		}

		// Run a zero-timeout engine cycle before blocking on the queue
		// again. engine.Engine sets its read deadline to now+timeout, which
		// has already passed, so this cycle reads no packet and only runs the
		// keepalive check; inbound packets are read on idle iterations.
		if err := a.engine.ProcessLoop(0); err != nil && fatal(err) {
			return err
		}
	}
}
