// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package packets

import (
	"fmt"
	"io"

	"github.com/absmach/mqttagent/packets/codec"
)

// ConnAck represents the MQTT 3.1.1 CONNACK packet.
type ConnAck struct {
	FixedHeader
	SessionPresent bool
	ReturnCode     byte
}

func (c *ConnAck) String() string {
	return fmt.Sprintf("%s\nsession_present: %t return_code: %d", c.FixedHeader, c.SessionPresent, c.ReturnCode)
}

func (c *ConnAck) Type() byte {
	return ConnAckType
}

func (c *ConnAck) Encode() []byte {
	body := []byte{codec.EncodeBool(c.SessionPresent), c.ReturnCode}
	c.FixedHeader.RemainingLength = len(body)
	return append(c.FixedHeader.Encode(), body...)
}

func (c *ConnAck) Pack(w io.Writer) error {
	_, err := w.Write(c.Encode())
	return err
}

func (c *ConnAck) Unpack(r io.Reader) error {
	flags, err := codec.DecodeByte(r)
	if err != nil {
		return err
	}
	c.SessionPresent = flags&0x01 > 0

	c.ReturnCode, err = codec.DecodeByte(r)
	return err
}
