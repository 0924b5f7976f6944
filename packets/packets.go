// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package packets implements the MQTT 3.1.1 control packets (protocol level 4).
package packets

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/absmach/mqttagent/packets/codec"
)

// Version311 is the protocol level carried by the CONNECT packet.
const Version311 byte = 0x04

// Packet type constants.
const (
	ConnectType = iota + 1 // 0 value is forbidden
	ConnAckType
	PublishType
	PubAckType
	PubRecType
	PubRelType
	PubCompType
	SubscribeType
	SubAckType
	UnsubscribeType
	UnsubAckType
	PingReqType
	PingRespType
	DisconnectType
)

// PacketNames maps packet type constants to string names.
var PacketNames = map[byte]string{
	ConnectType:     "CONNECT",
	ConnAckType:     "CONNACK",
	PublishType:     "PUBLISH",
	PubAckType:      "PUBACK",
	PubRecType:      "PUBREC",
	PubRelType:      "PUBREL",
	PubCompType:     "PUBCOMP",
	SubscribeType:   "SUBSCRIBE",
	SubAckType:      "SUBACK",
	UnsubscribeType: "UNSUBSCRIBE",
	UnsubAckType:    "UNSUBACK",
	PingReqType:     "PINGREQ",
	PingRespType:    "PINGRESP",
	DisconnectType:  "DISCONNECT",
}

// Packet errors.
var (
	ErrInvalidPacketType = errors.New("invalid packet type")
	ErrShortPacket       = errors.New("packet body shorter than remaining length")
)

// ControlPacket is the interface satisfied by all MQTT control packets.
type ControlPacket interface {
	// Encode serializes the packet to bytes.
	Encode() []byte

	// Pack writes the encoded packet to the writer.
	Pack(w io.Writer) error

	// Unpack deserializes the packet body after the fixed header has been read.
	Unpack(r io.Reader) error

	// Type returns the packet type constant.
	Type() byte

	// String returns a human-readable representation.
	String() string
}

// Details contains packet metadata useful for QoS handling.
type Details struct {
	Type byte
	ID   uint16
	QoS  byte
}

// Detailer is an optional interface for packets that provide QoS details.
type Detailer interface {
	Details() Details
}

// FixedHeader represents the MQTT fixed header present in all packets.
type FixedHeader struct {
	PacketType      byte
	Dup             bool
	QoS             byte
	Retain          bool
	RemainingLength int
}

const headerFormat = "type: %s dup: %t qos: %d retain: %t remaining_length: %d"

func (fh FixedHeader) String() string {
	return fmt.Sprintf(headerFormat, PacketNames[fh.PacketType], fh.Dup, fh.QoS, fh.Retain, fh.RemainingLength)
}

// Encode serializes the fixed header to bytes.
func (fh FixedHeader) Encode() []byte {
	ret := []byte{fh.PacketType<<4 | codec.EncodeBool(fh.Dup)<<3 | fh.QoS<<1 | codec.EncodeBool(fh.Retain)}
	return append(ret, codec.EncodeVBI(fh.RemainingLength)...)
}

// Decode parses the fixed header from the type/flags byte and reader.
func (fh *FixedHeader) Decode(typeAndFlags byte, r io.Reader) error {
	fh.PacketType = typeAndFlags >> 4
	fh.Dup = (typeAndFlags>>3)&0x01 > 0
	fh.QoS = (typeAndFlags >> 1) & 0x03
	fh.Retain = typeAndFlags&0x01 > 0

	var err error
	fh.RemainingLength, err = codec.DecodeVBI(r)
	return err
}

// NewControlPacket creates a new packet of the specified type.
func NewControlPacket(packetType byte) ControlPacket {
	switch packetType {
	case ConnectType:
		return &Connect{FixedHeader: FixedHeader{PacketType: ConnectType}}
	case ConnAckType:
		return &ConnAck{FixedHeader: FixedHeader{PacketType: ConnAckType}}
	case PublishType:
		return &Publish{FixedHeader: FixedHeader{PacketType: PublishType}}
	case PubAckType:
		return &PubAck{FixedHeader: FixedHeader{PacketType: PubAckType}}
	case PubRecType:
		return &PubRec{FixedHeader: FixedHeader{PacketType: PubRecType}}
	case PubRelType:
		return &PubRel{FixedHeader: FixedHeader{PacketType: PubRelType, QoS: 1}}
	case PubCompType:
		return &PubComp{FixedHeader: FixedHeader{PacketType: PubCompType}}
	case SubscribeType:
		return &Subscribe{FixedHeader: FixedHeader{PacketType: SubscribeType, QoS: 1}}
	case SubAckType:
		return &SubAck{FixedHeader: FixedHeader{PacketType: SubAckType}}
	case UnsubscribeType:
		return &Unsubscribe{FixedHeader: FixedHeader{PacketType: UnsubscribeType, QoS: 1}}
	case UnsubAckType:
		return &UnsubAck{FixedHeader: FixedHeader{PacketType: UnsubAckType}}
	case PingReqType:
		return &PingReq{FixedHeader: FixedHeader{PacketType: PingReqType}}
	case PingRespType:
		return &PingResp{FixedHeader: FixedHeader{PacketType: PingRespType}}
	case DisconnectType:
		return &Disconnect{FixedHeader: FixedHeader{PacketType: DisconnectType}}
	}
	return nil
}

// ReadPacket reads and parses a single control packet from the reader.
func ReadPacket(r io.Reader) (ControlPacket, error) {
	typeAndFlags, err := codec.DecodeByte(r)
	if err != nil {
		return nil, err
	}

	var fh FixedHeader
	if err := fh.Decode(typeAndFlags, r); err != nil {
		return nil, err
	}

	pkt := NewControlPacket(fh.PacketType)
	if pkt == nil {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPacketType, fh.PacketType)
	}
	setFixedHeader(pkt, fh)

	body := make([]byte, fh.RemainingLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShortPacket, err)
	}

	if err := pkt.Unpack(bytes.NewReader(body)); err != nil {
		return nil, err
	}
	return pkt, nil
}

func setFixedHeader(pkt ControlPacket, fh FixedHeader) {
	switch p := pkt.(type) {
	case *Connect:
		p.FixedHeader = fh
	case *ConnAck:
		p.FixedHeader = fh
	case *Publish:
		p.FixedHeader = fh
	case *PubAck:
		p.FixedHeader = fh
	case *PubRec:
		p.FixedHeader = fh
	case *PubRel:
		p.FixedHeader = fh
	case *PubComp:
		p.FixedHeader = fh
	case *Subscribe:
		p.FixedHeader = fh
	case *SubAck:
		p.FixedHeader = fh
	case *Unsubscribe:
		p.FixedHeader = fh
	case *UnsubAck:
		p.FixedHeader = fh
	case *PingReq:
		p.FixedHeader = fh
	case *PingResp:
		p.FixedHeader = fh
	case *Disconnect:
		p.FixedHeader = fh
	}
}
