// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"time"

	"github.com/absmach/mqttagent/packets"
)

// Engine is the single-threaded MQTT protocol engine the agent drives. It
// owns the wire protocol: packet encode/decode, keepalive, and the QoS 2
// mid-flight exchange (PUBREC/PUBREL). The agent calls it only from the
// worker goroutine; implementations need not be safe for concurrent use.
type Engine interface {
	// Connect performs the CONNECT/CONNACK handshake synchronously and
	// reports the session-present flag. A refused connection returns the
	// ConnAckCode as the error.
	Connect(opts *ConnectOptions) (sessionPresent bool, err error)

	// Publish sends a PUBLISH. packetID must be non-zero for QoS > 0 and
	// zero for QoS 0.
	Publish(msg *Message, packetID uint16) error

	// Subscribe sends a SUBSCRIBE with the given packet ID.
	Subscribe(packetID uint16, topics []packets.Topic) error

	// Unsubscribe sends an UNSUBSCRIBE with the given packet ID.
	Unsubscribe(packetID uint16, filters []string) error

	// Ping sends a PINGREQ. The PINGRESP is observed during ProcessLoop.
	Ping() error

	// Disconnect sends a DISCONNECT.
	Disconnect() error

	// ProcessLoop services the wire for one I/O cycle bounded by timeout,
	// invoking the sink for every packet it accepts. An idle cycle is not
	// an error.
	ProcessLoop(timeout time.Duration) error

	// NextPacketID issues a protocol packet identifier. Zero means the ID
	// space is exhausted, which the agent treats as a fatal protocol-state
	// error for the command.
	NextPacketID() uint16

	// SetSink installs the callback invoked for every incoming packet the
	// engine accepts during ProcessLoop.
	SetSink(sink func(pkt packets.ControlPacket))
}
