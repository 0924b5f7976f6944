// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package engine implements the single-threaded MQTT 3.1.1 protocol engine
// driven by the agent's worker. It owns packet encode/decode over one
// net.Conn, keepalive, and the QoS 2 mid-flight exchange. It is not safe for
// concurrent use; the agent guarantees a single caller.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/absmach/mqttagent/agent"
	"github.com/absmach/mqttagent/packets"
)

// Engine errors.
var (
	ErrUnexpectedPacket = errors.New("unexpected packet type")
)

// Default timeouts.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultWriteTimeout   = 5 * time.Second
)

// Options configures an Engine.
type Options struct {
	// ConnectTimeout bounds the CONNECT/CONNACK handshake.
	ConnectTimeout time.Duration

	// WriteTimeout bounds every packet write.
	WriteTimeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (o *Options) apply() {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Engine drives MQTT 3.1.1 over a single connection.
type Engine struct {
	conn net.Conn
	opts Options
	sink func(pkt packets.ControlPacket)

	nextID    uint16
	keepAlive time.Duration
	lastWrite time.Time

	// Inbound QoS 2 publishes held until PUBREL arrives.
	qos2Pending map[uint16]*packets.Publish

	logger *slog.Logger
}

// New creates an engine over the given connection. The connection may be nil
// and supplied later via Reset.
func New(conn net.Conn, opts Options) *Engine {
	opts.apply()
	return &Engine{
		conn:        conn,
		opts:        opts,
		qos2Pending: make(map[uint16]*packets.Publish),
		logger:      opts.Logger,
	}
}

// Reset rebinds the engine to a fresh connection after a reconnect. Session
// state (packet ID counter, inbound QoS 2 holds) is kept so a resumed
// session stays consistent; call ClearSession for a clean start.
func (e *Engine) Reset(conn net.Conn) {
	if e.conn != nil && e.conn != conn {
		e.conn.Close()
	}
	e.conn = conn
	e.lastWrite = time.Time{}
}

// ClearSession drops the engine's session state.
func (e *Engine) ClearSession() {
	e.nextID = 0
	e.qos2Pending = make(map[uint16]*packets.Publish)
}

// SetSink installs the incoming-packet callback.
func (e *Engine) SetSink(sink func(pkt packets.ControlPacket)) {
	e.sink = sink
}

// NextPacketID issues the next protocol packet identifier, skipping zero.
func (e *Engine) NextPacketID() uint16 {
	e.nextID++
	if e.nextID == 0 {
		e.nextID = 1
	}
	return e.nextID
}

// Connect performs the CONNECT/CONNACK handshake synchronously and reports
// the session-present flag.
func (e *Engine) Connect(opts *agent.ConnectOptions) (bool, error) {
	if e.conn == nil {
		return false, agent.ErrNotConnected
	}

	pkt := &packets.Connect{
		FixedHeader:     packets.FixedHeader{PacketType: packets.ConnectType},
		ProtocolName:    "MQTT",
		ProtocolVersion: packets.Version311,
		ClientID:        opts.ClientID,
		KeepAlive:       opts.KeepAlive,
		CleanSession:    opts.CleanSession,
	}
	if opts.Username != "" {
		pkt.UsernameFlag = true
		pkt.Username = opts.Username
	}
	if opts.Password != nil {
		pkt.PasswordFlag = true
		pkt.Password = opts.Password
	}
	if opts.Will != nil {
		pkt.WillFlag = true
		pkt.WillTopic = opts.Will.Topic
		pkt.WillMessage = opts.Will.Payload
		pkt.WillQoS = opts.Will.QoS
		pkt.WillRetain = opts.Will.Retain
	}

	if err := e.write(pkt); err != nil {
		return false, err
	}

	if err := e.conn.SetReadDeadline(time.Now().Add(e.opts.ConnectTimeout)); err != nil {
		return false, err
	}
	defer e.conn.SetReadDeadline(time.Time{})

	in, err := packets.ReadPacket(e.conn)
	if err != nil {
		return false, err
	}
	ack, ok := in.(*packets.ConnAck)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnexpectedPacket, packets.PacketNames[in.Type()])
	}
	if code := agent.ConnAckCode(ack.ReturnCode); code != agent.ConnAccepted {
		return false, code
	}

	e.keepAlive = time.Duration(opts.KeepAlive) * time.Second
	return ack.SessionPresent, nil
}

// Publish sends a PUBLISH. packetID must be zero for QoS 0.
func (e *Engine) Publish(msg *agent.Message, packetID uint16) error {
	pkt := &packets.Publish{
		FixedHeader: packets.FixedHeader{
			PacketType: packets.PublishType,
			QoS:        msg.QoS,
			Retain:     msg.Retain,
			Dup:        msg.Dup,
		},
		TopicName: msg.Topic,
		ID:        packetID,
		Payload:   msg.Payload,
	}
	return e.write(pkt)
}

// Subscribe sends a SUBSCRIBE.
func (e *Engine) Subscribe(packetID uint16, topics []packets.Topic) error {
	pkt := &packets.Subscribe{
		FixedHeader: packets.FixedHeader{PacketType: packets.SubscribeType, QoS: 1},
		ID:          packetID,
		Topics:      topics,
	}
	return e.write(pkt)
}

// Unsubscribe sends an UNSUBSCRIBE.
func (e *Engine) Unsubscribe(packetID uint16, filters []string) error {
	pkt := &packets.Unsubscribe{
		FixedHeader: packets.FixedHeader{PacketType: packets.UnsubscribeType, QoS: 1},
		ID:          packetID,
		Topics:      filters,
	}
	return e.write(pkt)
}

// Ping sends a PINGREQ. The PINGRESP is observed during ProcessLoop.
func (e *Engine) Ping() error {
	return e.write(&packets.PingReq{FixedHeader: packets.FixedHeader{PacketType: packets.PingReqType}})
}

// Disconnect sends a DISCONNECT.
func (e *Engine) Disconnect() error {
	return e.write(&packets.Disconnect{FixedHeader: packets.FixedHeader{PacketType: packets.DisconnectType}})
}

// ProcessLoop services the wire for one I/O cycle bounded by timeout. An
// idle cycle (read deadline expiring with no packet) is not an error.
func (e *Engine) ProcessLoop(timeout time.Duration) error {
	if e.conn == nil {
		return agent.ErrNotConnected
	}

	if err := e.maybePing(); err != nil {
		return err
	}

	if err := e.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}

	pkt, err := packets.ReadPacket(e.conn)
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return nil
		}
		return err
	}

	return e.handle(pkt)
}

func (e *Engine) handle(pkt packets.ControlPacket) error {
	switch p := pkt.(type) {
	case *packets.Publish:
		return e.handlePublish(p)
	case *packets.PubRec:
		// Outbound QoS 2, part 1 acknowledged; release the message.
		rel := &packets.PubRel{
			FixedHeader: packets.FixedHeader{PacketType: packets.PubRelType, QoS: 1},
			ID:          p.ID,
		}
		if err := e.write(rel); err != nil {
			return err
		}
		e.emit(pkt)
		return nil
	case *packets.PubRel:
		// Inbound QoS 2, part 2: deliver exactly once and complete.
		if held, ok := e.qos2Pending[p.ID]; ok {
			delete(e.qos2Pending, p.ID)
			e.emit(held)
		}
		return e.write(&packets.PubComp{
			FixedHeader: packets.FixedHeader{PacketType: packets.PubCompType},
			ID:          p.ID,
		})
	default:
		e.emit(pkt)
		return nil
	}
}

func (e *Engine) handlePublish(p *packets.Publish) error {
	switch p.QoS {
	case 0:
		e.emit(p)
		return nil
	case 1:
		e.emit(p)
		return e.write(&packets.PubAck{
			FixedHeader: packets.FixedHeader{PacketType: packets.PubAckType},
			ID:          p.ID,
		})
	default:
		// Hold until PUBREL so the sink sees the message exactly once.
		e.qos2Pending[p.ID] = p
		return e.write(&packets.PubRec{
			FixedHeader: packets.FixedHeader{PacketType: packets.PubRecType},
			ID:          p.ID,
		})
	}
}

func (e *Engine) emit(pkt packets.ControlPacket) {
	if e.sink != nil {
		e.sink(pkt)
	}
}

// maybePing keeps the connection alive when no control packet has been
// written for half the keepalive interval.
func (e *Engine) maybePing() error {
	if e.keepAlive <= 0 || e.lastWrite.IsZero() {
		return nil
	}
	if time.Since(e.lastWrite) < e.keepAlive/2 {
		return nil
	}
	e.logger.Debug("keepalive ping")
	return e.Ping()
}

func (e *Engine) write(pkt packets.ControlPacket) error {
	if e.conn == nil {
		return agent.ErrNotConnected
	}
	if err := e.conn.SetWriteDeadline(time.Now().Add(e.opts.WriteTimeout)); err != nil {
		return err
	}
	defer e.conn.SetWriteDeadline(time.Time{})

	if err := pkt.Pack(e.conn); err != nil {
		return fmt.Errorf("write %s: %w", packets.PacketNames[pkt.Type()], err)
	}
	e.lastWrite = time.Now()
	return nil
}
