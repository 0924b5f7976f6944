// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"errors"
	"testing"
	"time"
)

func TestChannelMailboxGetRelease(t *testing.T) {
	m := NewChannelMailbox(4, 2)

	c1, err := m.Get(0)
	if err != nil {
		t.Fatalf("first get failed: %v", err)
	}
	c2, err := m.Get(0)
	if err != nil {
		t.Fatalf("second get failed: %v", err)
	}

	if _, err := m.Get(0); !errors.Is(err, ErrNoMemory) {
		t.Errorf("expected ErrNoMemory on exhausted pool, got %v", err)
	}

	if err := m.Release(c1); err != nil {
		t.Errorf("release failed: %v", err)
	}
	if _, err := m.Get(0); err != nil {
		t.Errorf("get after release failed: %v", err)
	}

	_ = c2
}

func TestChannelMailboxDoubleRelease(t *testing.T) {
	m := NewChannelMailbox(4, 2)

	cmd, err := m.Get(0)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if err := m.Release(cmd); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := m.Release(cmd); !errors.Is(err, ErrDoubleRelease) {
		t.Errorf("expected ErrDoubleRelease, got %v", err)
	}
}

func TestChannelMailboxSendRecvFIFO(t *testing.T) {
	m := NewChannelMailbox(8, 8)

	var sent []*Command
	for i := 0; i < 5; i++ {
		cmd, err := m.Get(0)
		if err != nil {
			t.Fatalf("get %d failed: %v", i, err)
		}
		cmd.kind = KindPublish
		if err := m.Send(cmd, 0); err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
		sent = append(sent, cmd)
	}

	for i := 0; i < 5; i++ {
		got, err := m.Recv(0)
		if err != nil {
			t.Fatalf("recv %d failed: %v", i, err)
		}
		if got != sent[i] {
			t.Errorf("recv %d returned out-of-order record", i)
		}
	}
}

func TestChannelMailboxRecvTimeout(t *testing.T) {
	m := NewChannelMailbox(4, 4)

	if _, err := m.Recv(0); !errors.Is(err, ErrRecvTimeout) {
		t.Errorf("expected ErrRecvTimeout on empty queue, got %v", err)
	}

	start := time.Now()
	if _, err := m.Recv(20 * time.Millisecond); !errors.Is(err, ErrRecvTimeout) {
		t.Errorf("expected ErrRecvTimeout, got %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("recv returned before the timeout elapsed")
	}
}

func TestChannelMailboxSendFullQueue(t *testing.T) {
	m := NewChannelMailbox(1, 4)

	c1, _ := m.Get(0)
	if err := m.Send(c1, 0); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	c2, _ := m.Get(0)
	if err := m.Send(c2, 0); !errors.Is(err, ErrSendFailed) {
		t.Errorf("expected ErrSendFailed on full queue, got %v", err)
	}
	if err := m.Send(c2, 10*time.Millisecond); !errors.Is(err, ErrSendFailed) {
		t.Errorf("expected ErrSendFailed after timeout, got %v", err)
	}
}

func TestChannelMailboxBlockingSend(t *testing.T) {
	m := NewChannelMailbox(1, 4)

	c1, _ := m.Get(0)
	if err := m.Send(c1, 0); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	done := make(chan error, 1)
	c2, _ := m.Get(0)
	go func() {
		done <- m.Send(c2, Forever)
	}()

	time.Sleep(10 * time.Millisecond)
	if _, err := m.Recv(0); err != nil {
		t.Fatalf("recv failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("blocking send failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocking send did not complete after recv freed a slot")
	}
}

func TestChannelMailboxReleaseResets(t *testing.T) {
	m := NewChannelMailbox(4, 1)

	cmd, _ := m.Get(0)
	cmd.kind = KindSubscribe
	cmd.packetID = 9
	cmd.completed = true

	if err := m.Release(cmd); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	again, err := m.Get(0)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if again.kind != KindNone || again.packetID != 0 || again.completed {
		t.Error("released record was not reset")
	}
}
