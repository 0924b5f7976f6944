// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package packets_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absmach/mqttagent/packets"
)

func TestReadPacketPublishQoS1(t *testing.T) {
	in := &packets.Publish{
		FixedHeader: packets.FixedHeader{PacketType: packets.PublishType, QoS: 1, Retain: true},
		TopicName:   "sensors/temp",
		ID:          7,
		Payload:     []byte("21.5"),
	}

	var buf bytes.Buffer
	require.NoError(t, in.Pack(&buf))

	pkt, err := packets.ReadPacket(&buf)
	require.NoError(t, err)

	out, ok := pkt.(*packets.Publish)
	require.True(t, ok)
	assert.Equal(t, "sensors/temp", out.TopicName)
	assert.Equal(t, uint16(7), out.ID)
	assert.Equal(t, byte(1), out.QoS)
	assert.True(t, out.Retain)
	assert.Equal(t, []byte("21.5"), out.Payload)
}

func TestReadPacketPublishQoS0NoID(t *testing.T) {
	in := &packets.Publish{
		FixedHeader: packets.FixedHeader{PacketType: packets.PublishType},
		TopicName:   "t",
		Payload:     []byte("x"),
	}

	var buf bytes.Buffer
	require.NoError(t, in.Pack(&buf))

	pkt, err := packets.ReadPacket(&buf)
	require.NoError(t, err)

	out := pkt.(*packets.Publish)
	assert.Equal(t, uint16(0), out.ID)
	assert.Equal(t, []byte("x"), out.Payload)
}

func TestReadPacketConnAckSessionPresent(t *testing.T) {
	in := &packets.ConnAck{
		FixedHeader:    packets.FixedHeader{PacketType: packets.ConnAckType},
		SessionPresent: true,
		ReturnCode:     0,
	}

	var buf bytes.Buffer
	require.NoError(t, in.Pack(&buf))

	pkt, err := packets.ReadPacket(&buf)
	require.NoError(t, err)

	out := pkt.(*packets.ConnAck)
	assert.True(t, out.SessionPresent)
	assert.Equal(t, byte(0), out.ReturnCode)
}

func TestReadPacketSubAckCodes(t *testing.T) {
	in := &packets.SubAck{
		FixedHeader: packets.FixedHeader{PacketType: packets.SubAckType},
		ID:          3,
		ReturnCodes: []byte{0x01, packets.SubAckFailure},
	}

	var buf bytes.Buffer
	require.NoError(t, in.Pack(&buf))

	pkt, err := packets.ReadPacket(&buf)
	require.NoError(t, err)

	out := pkt.(*packets.SubAck)
	assert.Equal(t, uint16(3), out.ID)
	assert.Equal(t, []byte{0x01, packets.SubAckFailure}, out.ReturnCodes)
}

func TestReadPacketConnectRoundTrip(t *testing.T) {
	in := &packets.Connect{
		FixedHeader:     packets.FixedHeader{PacketType: packets.ConnectType},
		ProtocolName:    "MQTT",
		ProtocolVersion: packets.Version311,
		ClientID:        "agent-1",
		KeepAlive:       30,
		CleanSession:    true,
		UsernameFlag:    true,
		Username:        "user",
		PasswordFlag:    true,
		Password:        []byte("secret"),
		WillFlag:        true,
		WillTopic:       "will/t",
		WillMessage:     []byte("gone"),
		WillQoS:         1,
	}

	var buf bytes.Buffer
	require.NoError(t, in.Pack(&buf))

	pkt, err := packets.ReadPacket(&buf)
	require.NoError(t, err)

	out := pkt.(*packets.Connect)
	assert.Equal(t, "agent-1", out.ClientID)
	assert.Equal(t, uint16(30), out.KeepAlive)
	assert.True(t, out.CleanSession)
	assert.Equal(t, "user", out.Username)
	assert.Equal(t, []byte("secret"), out.Password)
	assert.Equal(t, "will/t", out.WillTopic)
	assert.Equal(t, []byte("gone"), out.WillMessage)
	assert.Equal(t, byte(1), out.WillQoS)
}

func TestReadPacketSubscribeRoundTrip(t *testing.T) {
	in := &packets.Subscribe{
		FixedHeader: packets.FixedHeader{PacketType: packets.SubscribeType, QoS: 1},
		ID:          11,
		Topics: []packets.Topic{
			{Name: "a/b", QoS: 1},
			{Name: "c/#", QoS: 2},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, in.Pack(&buf))

	pkt, err := packets.ReadPacket(&buf)
	require.NoError(t, err)

	out := pkt.(*packets.Subscribe)
	assert.Equal(t, uint16(11), out.ID)
	require.Len(t, out.Topics, 2)
	assert.Equal(t, packets.Topic{Name: "a/b", QoS: 1}, out.Topics[0])
	assert.Equal(t, packets.Topic{Name: "c/#", QoS: 2}, out.Topics[1])
}

func TestReadPacketUnsubscribeRoundTrip(t *testing.T) {
	in := &packets.Unsubscribe{
		FixedHeader: packets.FixedHeader{PacketType: packets.UnsubscribeType, QoS: 1},
		ID:          12,
		Topics:      []string{"a/b", "c/#"},
	}

	var buf bytes.Buffer
	require.NoError(t, in.Pack(&buf))

	pkt, err := packets.ReadPacket(&buf)
	require.NoError(t, err)

	out := pkt.(*packets.Unsubscribe)
	assert.Equal(t, uint16(12), out.ID)
	assert.Equal(t, []string{"a/b", "c/#"}, out.Topics)
}

func TestReadPacketPingAndDisconnect(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&packets.PingReq{FixedHeader: packets.FixedHeader{PacketType: packets.PingReqType}}).Pack(&buf))
	require.NoError(t, (&packets.PingResp{FixedHeader: packets.FixedHeader{PacketType: packets.PingRespType}}).Pack(&buf))
	require.NoError(t, (&packets.Disconnect{FixedHeader: packets.FixedHeader{PacketType: packets.DisconnectType}}).Pack(&buf))

	for _, want := range []byte{packets.PingReqType, packets.PingRespType, packets.DisconnectType} {
		pkt, err := packets.ReadPacket(&buf)
		require.NoError(t, err)
		assert.Equal(t, want, pkt.Type())
	}
}

func TestReadPacketInvalidType(t *testing.T) {
	// Type 0 is forbidden by the protocol.
	_, err := packets.ReadPacket(bytes.NewReader([]byte{0x00, 0x00}))
	assert.ErrorIs(t, err, packets.ErrInvalidPacketType)
}
