// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package packets

import (
	"fmt"
	"io"

	"github.com/absmach/mqttagent/packets/codec"
)

// PubComp represents the MQTT 3.1.1 PUBCOMP packet (QoS 2 delivery, part 3).
type PubComp struct {
	FixedHeader
	ID uint16
}

func (p *PubComp) String() string {
	return fmt.Sprintf("%s\npacket_id: %d", p.FixedHeader, p.ID)
}

func (p *PubComp) Type() byte {
	return PubCompType
}

func (p *PubComp) Encode() []byte {
	p.FixedHeader.RemainingLength = 2
	return append(p.FixedHeader.Encode(), codec.EncodeUint16(p.ID)...)
}

func (p *PubComp) Pack(w io.Writer) error {
	_, err := w.Write(p.Encode())
	return err
}

func (p *PubComp) Unpack(r io.Reader) error {
	var err error
	p.ID, err = codec.DecodeUint16(r)
	return err
}

func (p *PubComp) Details() Details {
	return Details{Type: PubCompType, ID: p.ID}
}
