// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package packets

import (
	"fmt"
	"io"

	"github.com/absmach/mqttagent/packets/codec"
)

// PubRel represents the MQTT 3.1.1 PUBREL packet (QoS 2 delivery, part 2).
// Its fixed header carries QoS 1 per the specification.
type PubRel struct {
	FixedHeader
	ID uint16
}

func (p *PubRel) String() string {
	return fmt.Sprintf("%s\npacket_id: %d", p.FixedHeader, p.ID)
}

func (p *PubRel) Type() byte {
	return PubRelType
}

func (p *PubRel) Encode() []byte {
	p.FixedHeader.RemainingLength = 2
	return append(p.FixedHeader.Encode(), codec.EncodeUint16(p.ID)...)
}

func (p *PubRel) Pack(w io.Writer) error {
	_, err := w.Write(p.Encode())
	return err
}

func (p *PubRel) Unpack(r io.Reader) error {
	var err error
	p.ID, err = codec.DecodeUint16(r)
	return err
}

func (p *PubRel) Details() Details {
	return Details{Type: PubRelType, ID: p.ID, QoS: p.QoS}
}
