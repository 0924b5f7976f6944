// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"log/slog"

	"github.com/absmach/mqttagent/packets"
)

// onPacket is the engine's packet sink. It runs on the worker goroutine and
// matches acknowledgments back to pending commands or routes publishes to
// the registered sinks.
func (a *Agent) onPacket(pkt packets.ControlPacket) {
	switch p := pkt.(type) {
	case *packets.Publish:
		a.routePublish(p)
	case *packets.PubAck:
		a.completeAck(p.ID, nil, nil)
	case *packets.PubComp:
		a.completeAck(p.ID, nil, nil)
	case *packets.SubAck:
		var err error
		for _, rc := range p.ReturnCodes {
			if rc == packets.SubAckFailure {
				err = ErrSubscribeFailed
				break
			}
		}
		a.completeAck(p.ID, err, p.ReturnCodes)
	case *packets.UnsubAck:
		a.completeAck(p.ID, nil, nil)
	case *packets.PubRec, *packets.PubRel, *packets.PingResp:
		// QoS 2 mid-flight and keepalive belong to the engine.
	default:
		a.logger.Debug("unexpected packet", slog.String("type", packets.PacketNames[pkt.Type()]))
	}
}

func (a *Agent) routePublish(p *packets.Publish) {
	msg := &Message{
		Topic:    p.TopicName,
		Payload:  p.Payload,
		QoS:      p.QoS,
		Retain:   p.Retain,
		Dup:      p.Dup,
		PacketID: p.ID,
	}
	a.metrics.PublishReceived()

	if a.router.dispatch(a.opts.PublishUserdata, msg) {
		return
	}
	if a.opts.OnPublish != nil {
		a.opts.OnPublish(a.opts.PublishUserdata, msg)
		return
	}
	a.logger.Debug("incoming publish dropped, no sink",
		slog.String("topic", msg.Topic), slog.Int("qos", int(msg.QoS)))
}

// completeAck matches an acknowledgment to its pending entry. Unmatched
// packet IDs are ignored as spurious.
func (a *Agent) completeAck(packetID uint16, err error, returnCodes []byte) {
	entry, ok := a.acks.take(packetID)
	if !ok {
		a.metrics.AckSpurious()
		a.logger.Debug("spurious ack", slog.Int("packet_id", int(packetID)))
		return
	}
	a.metrics.PendingAcksAdd(-1)
	a.metrics.AckMatched()

	a.completeAndRelease(entry.cmd, ReturnInfo{Err: err, ReturnCodes: returnCodes})
}
