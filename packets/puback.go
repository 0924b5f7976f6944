// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package packets

import (
	"fmt"
	"io"

	"github.com/absmach/mqttagent/packets/codec"
)

// PubAck represents the MQTT 3.1.1 PUBACK packet.
type PubAck struct {
	FixedHeader
	ID uint16
}

func (p *PubAck) String() string {
	return fmt.Sprintf("%s\npacket_id: %d", p.FixedHeader, p.ID)
}

func (p *PubAck) Type() byte {
	return PubAckType
}

func (p *PubAck) Encode() []byte {
	p.FixedHeader.RemainingLength = 2
	return append(p.FixedHeader.Encode(), codec.EncodeUint16(p.ID)...)
}

func (p *PubAck) Pack(w io.Writer) error {
	_, err := w.Write(p.Encode())
	return err
}

func (p *PubAck) Unpack(r io.Reader) error {
	var err error
	p.ID, err = codec.DecodeUint16(r)
	return err
}

func (p *PubAck) Details() Details {
	return Details{Type: PubAckType, ID: p.ID}
}
