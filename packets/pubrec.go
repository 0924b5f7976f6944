// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package packets

import (
	"fmt"
	"io"

	"github.com/absmach/mqttagent/packets/codec"
)

// PubRec represents the MQTT 3.1.1 PUBREC packet (QoS 2 delivery, part 1).
type PubRec struct {
	FixedHeader
	ID uint16
}

func (p *PubRec) String() string {
	return fmt.Sprintf("%s\npacket_id: %d", p.FixedHeader, p.ID)
}

func (p *PubRec) Type() byte {
	return PubRecType
}

func (p *PubRec) Encode() []byte {
	p.FixedHeader.RemainingLength = 2
	return append(p.FixedHeader.Encode(), codec.EncodeUint16(p.ID)...)
}

func (p *PubRec) Pack(w io.Writer) error {
	_, err := w.Write(p.Encode())
	return err
}

func (p *PubRec) Unpack(r io.Reader) error {
	var err error
	p.ID, err = codec.DecodeUint16(r)
	return err
}

func (p *PubRec) Details() Details {
	return Details{Type: PubRecType, ID: p.ID}
}
