// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package packets

import (
	"fmt"
	"io"

	"github.com/absmach/mqttagent/packets/codec"
)

// Topic is a single subscription request entry.
type Topic struct {
	Name string
	QoS  byte
}

// Subscribe represents the MQTT 3.1.1 SUBSCRIBE packet.
// Its fixed header carries QoS 1 per the specification.
type Subscribe struct {
	FixedHeader
	ID     uint16
	Topics []Topic
}

func (s *Subscribe) String() string {
	return fmt.Sprintf("%s\npacket_id: %d topics: %v", s.FixedHeader, s.ID, s.Topics)
}

func (s *Subscribe) Type() byte {
	return SubscribeType
}

func (s *Subscribe) Encode() []byte {
	var body []byte
	body = append(body, codec.EncodeUint16(s.ID)...)
	for _, t := range s.Topics {
		body = append(body, codec.EncodeString(t.Name)...)
		body = append(body, t.QoS)
	}
	s.FixedHeader.RemainingLength = len(body)
	return append(s.FixedHeader.Encode(), body...)
}

func (s *Subscribe) Pack(w io.Writer) error {
	_, err := w.Write(s.Encode())
	return err
}

func (s *Subscribe) Unpack(r io.Reader) error {
	var err error
	if s.ID, err = codec.DecodeUint16(r); err != nil {
		return err
	}

	consumed := 2
	for consumed < s.FixedHeader.RemainingLength {
		name, err := codec.DecodeString(r)
		if err != nil {
			return err
		}
		qos, err := codec.DecodeByte(r)
		if err != nil {
			return err
		}
		s.Topics = append(s.Topics, Topic{Name: name, QoS: qos})
		consumed += 2 + len(name) + 1
	}
	return nil
}

func (s *Subscribe) Details() Details {
	return Details{Type: SubscribeType, ID: s.ID}
}
