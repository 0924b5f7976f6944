// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package packets

import (
	"errors"
	"fmt"
	"io"

	"github.com/absmach/mqttagent/packets/codec"
)

// ErrPublishInvalidLength represents invalid length of PUBLISH packet.
var ErrPublishInvalidLength = errors.New("error unpacking publish, payload length < 0")

// Publish represents the MQTT 3.1.1 PUBLISH packet.
type Publish struct {
	FixedHeader
	TopicName string
	ID        uint16
	Payload   []byte
}

func (p *Publish) String() string {
	return fmt.Sprintf("%s\ntopic_name: %s packet_id: %d payload_len: %d", p.FixedHeader, p.TopicName, p.ID, len(p.Payload))
}

func (p *Publish) Type() byte {
	return PublishType
}

func (p *Publish) Encode() []byte {
	var body []byte
	body = append(body, codec.EncodeString(p.TopicName)...)
	if p.QoS > 0 {
		body = append(body, codec.EncodeUint16(p.ID)...)
	}
	p.FixedHeader.RemainingLength = len(body) + len(p.Payload)
	ret := append(p.FixedHeader.Encode(), body...)
	return append(ret, p.Payload...)
}

func (p *Publish) Pack(w io.Writer) error {
	_, err := w.Write(p.Encode())
	return err
}

func (p *Publish) Unpack(r io.Reader) error {
	payloadLength := p.FixedHeader.RemainingLength
	var err error
	if p.TopicName, err = codec.DecodeString(r); err != nil {
		return err
	}

	if p.QoS > 0 {
		if p.ID, err = codec.DecodeUint16(r); err != nil {
			return err
		}
		payloadLength -= len(p.TopicName) + 4
	} else {
		payloadLength -= len(p.TopicName) + 2
	}
	if payloadLength < 0 {
		return ErrPublishInvalidLength
	}
	p.Payload = make([]byte, payloadLength)
	_, err = io.ReadFull(r, p.Payload)
	return err
}

// Copy creates a new Publish with the same topic and payload but a fresh
// fixed header, useful for redelivery with different flags.
func (p *Publish) Copy() *Publish {
	cp := NewControlPacket(PublishType).(*Publish)
	cp.TopicName = p.TopicName
	cp.Payload = p.Payload
	return cp
}

func (p *Publish) Details() Details {
	return Details{Type: PublishType, ID: p.ID, QoS: p.QoS}
}
