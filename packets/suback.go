// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package packets

import (
	"fmt"
	"io"

	"github.com/absmach/mqttagent/packets/codec"
)

// SubAckFailure is the SUBACK return code indicating a rejected subscription.
const SubAckFailure byte = 0x80

// SubAck represents the MQTT 3.1.1 SUBACK packet.
type SubAck struct {
	FixedHeader
	ID          uint16
	ReturnCodes []byte
}

func (s *SubAck) String() string {
	return fmt.Sprintf("%s\npacket_id: %d return_codes: %v", s.FixedHeader, s.ID, s.ReturnCodes)
}

func (s *SubAck) Type() byte {
	return SubAckType
}

func (s *SubAck) Encode() []byte {
	var body []byte
	body = append(body, codec.EncodeUint16(s.ID)...)
	body = append(body, s.ReturnCodes...)
	s.FixedHeader.RemainingLength = len(body)
	return append(s.FixedHeader.Encode(), body...)
}

func (s *SubAck) Pack(w io.Writer) error {
	_, err := w.Write(s.Encode())
	return err
}

func (s *SubAck) Unpack(r io.Reader) error {
	var err error
	if s.ID, err = codec.DecodeUint16(r); err != nil {
		return err
	}
	s.ReturnCodes, err = io.ReadAll(r)
	return err
}

func (s *SubAck) Details() Details {
	return Details{Type: SubAckType, ID: s.ID}
}
