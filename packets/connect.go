// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package packets

import (
	"errors"
	"fmt"
	"io"

	"github.com/absmach/mqttagent/packets/codec"
)

// ErrUnsupportedProtocol indicates a protocol level other than 3.1.1.
var ErrUnsupportedProtocol = errors.New("unsupported protocol level")

// Connect represents the MQTT 3.1.1 CONNECT packet.
type Connect struct {
	FixedHeader
	ProtocolName    string
	ProtocolVersion byte
	CleanSession    bool
	WillFlag        bool
	WillQoS         byte
	WillRetain      bool
	UsernameFlag    bool
	PasswordFlag    bool
	KeepAlive       uint16
	ClientID        string
	WillTopic       string
	WillMessage     []byte
	Username        string
	Password        []byte
}

func (c *Connect) String() string {
	return fmt.Sprintf("%s\nclient_id: %s clean_session: %t keep_alive: %d", c.FixedHeader, c.ClientID, c.CleanSession, c.KeepAlive)
}

func (c *Connect) Type() byte {
	return ConnectType
}

func (c *Connect) Encode() []byte {
	var flags byte
	if c.CleanSession {
		flags |= 0x02
	}
	if c.WillFlag {
		flags |= 0x04
		flags |= c.WillQoS << 3
		if c.WillRetain {
			flags |= 0x20
		}
	}
	if c.PasswordFlag {
		flags |= 0x40
	}
	if c.UsernameFlag {
		flags |= 0x80
	}

	var body []byte
	body = append(body, codec.EncodeString(c.ProtocolName)...)
	body = append(body, c.ProtocolVersion)
	body = append(body, flags)
	body = append(body, codec.EncodeUint16(c.KeepAlive)...)
	body = append(body, codec.EncodeString(c.ClientID)...)
	if c.WillFlag {
		body = append(body, codec.EncodeString(c.WillTopic)...)
		body = append(body, codec.EncodeBytes(c.WillMessage)...)
	}
	if c.UsernameFlag {
		body = append(body, codec.EncodeString(c.Username)...)
	}
	if c.PasswordFlag {
		body = append(body, codec.EncodeBytes(c.Password)...)
	}

	c.FixedHeader.RemainingLength = len(body)
	return append(c.FixedHeader.Encode(), body...)
}

func (c *Connect) Pack(w io.Writer) error {
	_, err := w.Write(c.Encode())
	return err
}

func (c *Connect) Unpack(r io.Reader) error {
	var err error
	if c.ProtocolName, err = codec.DecodeString(r); err != nil {
		return err
	}
	if c.ProtocolVersion, err = codec.DecodeByte(r); err != nil {
		return err
	}
	if c.ProtocolVersion != Version311 {
		return fmt.Errorf("%w: %d", ErrUnsupportedProtocol, c.ProtocolVersion)
	}

	flags, err := codec.DecodeByte(r)
	if err != nil {
		return err
	}
	c.CleanSession = flags&0x02 > 0
	c.WillFlag = flags&0x04 > 0
	c.WillQoS = (flags >> 3) & 0x03
	c.WillRetain = flags&0x20 > 0
	c.PasswordFlag = flags&0x40 > 0
	c.UsernameFlag = flags&0x80 > 0

	if c.KeepAlive, err = codec.DecodeUint16(r); err != nil {
		return err
	}
	if c.ClientID, err = codec.DecodeString(r); err != nil {
		return err
	}
	if c.WillFlag {
		if c.WillTopic, err = codec.DecodeString(r); err != nil {
			return err
		}
		if c.WillMessage, err = codec.DecodeBytes(r); err != nil {
			return err
		}
	}
	if c.UsernameFlag {
		if c.Username, err = codec.DecodeString(r); err != nil {
			return err
		}
	}
	if c.PasswordFlag {
		if c.Password, err = codec.DecodeBytes(r); err != nil {
			return err
		}
	}
	return nil
}
