// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package packets

import (
	"fmt"
	"io"

	"github.com/absmach/mqttagent/packets/codec"
)

// UnsubAck represents the MQTT 3.1.1 UNSUBACK packet.
type UnsubAck struct {
	FixedHeader
	ID uint16
}

func (u *UnsubAck) String() string {
	return fmt.Sprintf("%s\npacket_id: %d", u.FixedHeader, u.ID)
}

func (u *UnsubAck) Type() byte {
	return UnsubAckType
}

func (u *UnsubAck) Encode() []byte {
	u.FixedHeader.RemainingLength = 2
	return append(u.FixedHeader.Encode(), codec.EncodeUint16(u.ID)...)
}

func (u *UnsubAck) Pack(w io.Writer) error {
	_, err := w.Write(u.Encode())
	return err
}

func (u *UnsubAck) Unpack(r io.Reader) error {
	var err error
	u.ID, err = codec.DecodeUint16(r)
	return err
}

func (u *UnsubAck) Details() Details {
	return Details{Type: UnsubAckType, ID: u.ID}
}
