// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package agent

// Message carries the application-level fields of an MQTT publish.
// For outbound publishes the struct is caller-owned until the command
// completes; the agent never copies it. PacketID is assigned at dispatch
// time for QoS > 0.
type Message struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retain   bool
	Dup      bool
	PacketID uint16
}

// NewMessage creates a message with the given parameters.
func NewMessage(topic string, payload []byte, qos byte, retain bool) *Message {
	return &Message{
		Topic:   topic,
		Payload: payload,
		QoS:     qos,
		Retain:  retain,
	}
}

// WillMessage represents a last will and testament message.
type WillMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// ConnectOptions carries the parameters of a CONNECT command. The block is
// caller-owned until the command completes.
type ConnectOptions struct {
	ClientID     string
	Username     string
	Password     []byte
	KeepAlive    uint16 // seconds, 0 disables keepalive
	CleanSession bool
	Will         *WillMessage
}
