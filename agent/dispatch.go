// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"errors"
	"log/slog"
	"time"
)

// dispatch translates one command into protocol-engine calls. A command
// either installs a pending-ack entry and returns without invoking its
// callback, or is completed exactly once and released here.
func (a *Agent) dispatch(cmd *Command) error {
	start := time.Now()
	defer func() {
		a.metrics.DispatchObserved(cmd.kind, time.Since(start).Seconds())
	}()

	switch cmd.kind {
	case KindProcessLoop:
		// Internal command; carries no record from the pool and no callback.
		return a.engine.ProcessLoop(a.opts.EventQueueWait)
	case KindPublish:
		return a.dispatchPublish(cmd)
	case KindSubscribe:
		return a.dispatchSubscribe(cmd)
	case KindUnsubscribe:
		return a.dispatchUnsubscribe(cmd)
	case KindConnect:
		return a.dispatchConnect(cmd)
	case KindDisconnect:
		err := a.engine.Disconnect()
		a.completeAndRelease(cmd, ReturnInfo{Err: err})
		return err
	case KindPing:
		err := a.engine.Ping()
		a.completeAndRelease(cmd, ReturnInfo{Err: err})
		return err
	case KindTerminate:
		a.terminate = true
		a.cancelAll()
		a.completeAndRelease(cmd, ReturnInfo{})
		return nil
	default:
		a.completeAndRelease(cmd, ReturnInfo{Err: ErrBadParameter})
		return nil
	}
}

func (a *Agent) dispatchPublish(cmd *Command) error {
	msg := cmd.publish

	if msg.QoS == 0 {
		err := a.engine.Publish(msg, 0)
		a.completeAndRelease(cmd, ReturnInfo{Err: err})
		return err
	}

	id := a.engine.NextPacketID()
	if id == 0 {
		a.completeAndRelease(cmd, ReturnInfo{Err: ErrIllegalState})
		return nil
	}
	msg.PacketID = id
	cmd.packetID = id

	if err := a.acks.add(id, cmd, msg); err != nil {
		a.completeAndRelease(cmd, ReturnInfo{Err: err})
		return nil
	}
	a.metrics.PendingAcksAdd(1)

	if err := a.engine.Publish(msg, id); err != nil {
		a.acks.take(id)
		a.metrics.PendingAcksAdd(-1)
		a.completeAndRelease(cmd, ReturnInfo{Err: err})
		return err
	}
	return nil
}

func (a *Agent) dispatchSubscribe(cmd *Command) error {
	id := a.engine.NextPacketID()
	if id == 0 {
		a.completeAndRelease(cmd, ReturnInfo{Err: ErrIllegalState})
		return nil
	}
	cmd.packetID = id

	if err := a.acks.add(id, cmd, nil); err != nil {
		a.completeAndRelease(cmd, ReturnInfo{Err: err})
		return nil
	}
	a.metrics.PendingAcksAdd(1)

	if err := a.engine.Subscribe(id, cmd.subs); err != nil {
		a.acks.take(id)
		a.metrics.PendingAcksAdd(-1)
		a.completeAndRelease(cmd, ReturnInfo{Err: err})
		return err
	}
	return nil
}

func (a *Agent) dispatchUnsubscribe(cmd *Command) error {
	id := a.engine.NextPacketID()
	if id == 0 {
		a.completeAndRelease(cmd, ReturnInfo{Err: ErrIllegalState})
		return nil
	}
	cmd.packetID = id

	if err := a.acks.add(id, cmd, nil); err != nil {
		a.completeAndRelease(cmd, ReturnInfo{Err: err})
		return nil
	}
	a.metrics.PendingAcksAdd(1)

	if err := a.engine.Unsubscribe(id, cmd.filters); err != nil {
		a.acks.take(id)
		a.metrics.PendingAcksAdd(-1)
		a.completeAndRelease(cmd, ReturnInfo{Err: err})
		return err
	}
	return nil
}

func (a *Agent) dispatchConnect(cmd *Command) error {
	sessionPresent, err := a.engine.Connect(cmd.connect)
	a.completeAndRelease(cmd, ReturnInfo{Err: err, SessionPresent: sessionPresent})

	var code ConnAckCode
	if errors.As(err, &code) {
		// Broker refused; the session is intact enough for the caller to
		// retry, so the loop keeps running.
		a.logger.Warn("connect refused", slog.String("code", code.String()))
		return nil
	}
	return err
}

// fatal reports whether a dispatch error indicates a broken session that
// must abort the worker loop.
func fatal(err error) bool {
	if err == nil {
		return false
	}
	var code ConnAckCode
	if errors.As(err, &code) {
		return false
	}
	switch {
	case errors.Is(err, ErrNoMemory),
		errors.Is(err, ErrIllegalState),
		errors.Is(err, ErrBadParameter),
		errors.Is(err, ErrNotConnected),
		errors.Is(err, ErrCommandAborted):
		return false
	}
	return true
}
