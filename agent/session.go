// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"errors"
	"log/slog"
)

// ResumeSession restores delivery state after a reconnect. Worker-scope: it
// must run on the worker goroutine while the command loop is not running.
//
// With sessionPresent (broker retained the session) every pending QoS > 0
// publish is re-sent with DUP set and its original packet ID; pending
// subscribes and unsubscribes stay in the table awaiting their acks. Without
// a session every pending command is cancelled and the caller must
// re-subscribe.
func (a *Agent) ResumeSession(sessionPresent bool) error {
	if !sessionPresent {
		a.cancelAll()
		return nil
	}

	var resendErr error
	a.acks.walk(func(entry *pendingAck) {
		if entry.publish == nil || resendErr != nil {
			return
		}
		entry.publish.Dup = true
		if err := a.engine.Publish(entry.publish, entry.packetID); err != nil {
			resendErr = err
			return
		}
		a.metrics.PublishResumed()
		a.logger.Debug("publish resumed",
			slog.String("topic", entry.publish.Topic),
			slog.Int("packet_id", int(entry.packetID)))
	})
	return resendErr
}

// CancelAll drains the command queue and the pending-ack table, completing
// every command with ErrCommandAborted. Worker-scope. After it returns both
// the queue and the table are empty.
func (a *Agent) CancelAll() {
	a.cancelAll()
}

func (a *Agent) cancelAll() {
	a.acks.drain(func(entry pendingAck) {
		a.metrics.PendingAcksAdd(-1)
		a.completeAndRelease(entry.cmd, ReturnInfo{Err: ErrCommandAborted})
	})

	for {
		cmd, err := a.mailbox.Recv(0)
		if err != nil {
			if !errors.Is(err, ErrRecvTimeout) {
				a.logger.Warn("queue drain failed", slog.Any("error", err))
			}
			return
		}
		a.completeAndRelease(cmd, ReturnInfo{Err: ErrCommandAborted})
	}
}
