// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package packets

import (
	"fmt"
	"io"

	"github.com/absmach/mqttagent/packets/codec"
)

// Unsubscribe represents the MQTT 3.1.1 UNSUBSCRIBE packet.
// Its fixed header carries QoS 1 per the specification.
type Unsubscribe struct {
	FixedHeader
	ID     uint16
	Topics []string
}

func (u *Unsubscribe) String() string {
	return fmt.Sprintf("%s\npacket_id: %d topics: %v", u.FixedHeader, u.ID, u.Topics)
}

func (u *Unsubscribe) Type() byte {
	return UnsubscribeType
}

func (u *Unsubscribe) Encode() []byte {
	var body []byte
	body = append(body, codec.EncodeUint16(u.ID)...)
	for _, t := range u.Topics {
		body = append(body, codec.EncodeString(t)...)
	}
	u.FixedHeader.RemainingLength = len(body)
	return append(u.FixedHeader.Encode(), body...)
}

func (u *Unsubscribe) Pack(w io.Writer) error {
	_, err := w.Write(u.Encode())
	return err
}

func (u *Unsubscribe) Unpack(r io.Reader) error {
	var err error
	if u.ID, err = codec.DecodeUint16(r); err != nil {
		return err
	}

	consumed := 2
	for consumed < u.FixedHeader.RemainingLength {
		topic, err := codec.DecodeString(r)
		if err != nil {
			return err
		}
		u.Topics = append(u.Topics, topic)
		consumed += 2 + len(topic)
	}
	return nil
}

func (u *Unsubscribe) Details() Details {
	return Details{Type: UnsubscribeType, ID: u.ID}
}
