// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// mqttSubprotocol is the websocket subprotocol name registered for MQTT.
const mqttSubprotocol = "mqtt"

// DialWebsocket opens an MQTT-over-websocket connection (binary frames) and
// adapts it to net.Conn for the protocol engine. url is a ws:// or wss://
// endpoint, typically ending in /mqtt.
func DialWebsocket(url string, cfg *tls.Config, timeout time.Duration) (net.Conn, error) {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
		TLSClientConfig:  cfg,
		Subprotocols:     []string{mqttSubprotocol},
	}

	ws, resp, err := dialer.Dial(url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	return &wsConn{ws: ws}, nil
}

// NewWSConn wraps an established websocket connection as a net.Conn. Useful
// for tests and custom handshakes.
func NewWSConn(ws *websocket.Conn) net.Conn {
	return &wsConn{ws: ws}
}

// wsConn adapts a websocket connection to the net.Conn the engine reads
// packets from. MQTT control packets may span or share websocket frames, so
// reads drain the current frame before pulling the next.
type wsConn struct {
	ws     *websocket.Conn
	reader io.Reader
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			msgType, r, err := c.ws.NextReader()
			if err != nil {
				return 0, err
			}
			if msgType != websocket.BinaryMessage {
				continue
			}
			c.reader = r
		}

		n, err := c.reader.Read(p)
		if err == io.EOF {
			// Frame exhausted; move on to the next one.
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

func (c *wsConn) LocalAddr() net.Addr {
	return c.ws.LocalAddr()
}

func (c *wsConn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *wsConn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}

func (c *wsConn) SetWriteDeadline(t time.Time) error {
	return c.ws.SetWriteDeadline(t)
}

// Upgrader upgrades HTTP requests for test brokers speaking MQTT over
// websocket.
var Upgrader = websocket.Upgrader{
	Subprotocols:    []string{mqttSubprotocol},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}
