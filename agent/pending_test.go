// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"errors"
	"testing"
)

func TestAckTableAdd(t *testing.T) {
	table := newAckTable(4)

	if table.len() != 0 {
		t.Errorf("initial len should be 0, got %d", table.len())
	}

	cmd := &Command{kind: KindPublish}
	if err := table.add(1, cmd, nil); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if table.len() != 1 {
		t.Errorf("len should be 1, got %d", table.len())
	}
}

func TestAckTableZeroID(t *testing.T) {
	table := newAckTable(4)

	if err := table.add(0, &Command{}, nil); !errors.Is(err, ErrIllegalState) {
		t.Errorf("expected ErrIllegalState for zero packet ID, got %v", err)
	}
}

func TestAckTableDuplicateID(t *testing.T) {
	table := newAckTable(4)

	if err := table.add(7, &Command{}, nil); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	if err := table.add(7, &Command{}, nil); !errors.Is(err, ErrIllegalState) {
		t.Errorf("expected ErrIllegalState for duplicate ID, got %v", err)
	}
	if table.len() != 1 {
		t.Errorf("duplicate add must not mutate state, len = %d", table.len())
	}
}

func TestAckTableFull(t *testing.T) {
	table := newAckTable(2)

	if err := table.add(1, &Command{}, nil); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	if err := table.add(2, &Command{}, nil); err != nil {
		t.Fatalf("second add failed: %v", err)
	}
	if err := table.add(3, &Command{}, nil); !errors.Is(err, ErrNoMemory) {
		t.Errorf("expected ErrNoMemory, got %v", err)
	}
	if table.len() != 2 {
		t.Errorf("overflow must not mutate state, len = %d", table.len())
	}
}

func TestAckTableTake(t *testing.T) {
	table := newAckTable(4)
	cmd := &Command{kind: KindSubscribe}
	msg := NewMessage("t", nil, 1, false)

	if err := table.add(5, cmd, msg); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	entry, ok := table.take(5)
	if !ok {
		t.Fatal("take should find the entry")
	}
	if entry.cmd != cmd || entry.publish != msg || entry.packetID != 5 {
		t.Error("take returned wrong entry")
	}
	if table.len() != 0 {
		t.Errorf("len should be 0 after take, got %d", table.len())
	}

	if _, ok := table.take(5); ok {
		t.Error("take should miss a removed entry")
	}
	if _, ok := table.take(0); ok {
		t.Error("take with zero ID should miss")
	}

	// Freed slot is reusable.
	if err := table.add(5, cmd, nil); err != nil {
		t.Errorf("add after take failed: %v", err)
	}
}

func TestAckTableDrain(t *testing.T) {
	table := newAckTable(4)
	table.add(1, &Command{}, NewMessage("a", nil, 1, false))
	table.add(2, &Command{}, nil)
	table.add(3, &Command{}, NewMessage("b", nil, 2, false))

	var drained []uint16
	table.drain(func(entry pendingAck) {
		drained = append(drained, entry.packetID)
	})

	if len(drained) != 3 {
		t.Errorf("drain should visit 3 entries, got %d", len(drained))
	}
	if table.len() != 0 {
		t.Errorf("table should be empty after drain, len = %d", table.len())
	}
}

func TestAckTableWalkPublishesOnly(t *testing.T) {
	table := newAckTable(4)
	table.add(1, &Command{}, NewMessage("a", nil, 1, false))
	table.add(2, &Command{}, nil) // subscribe entry

	count := 0
	table.walk(func(entry *pendingAck) {
		if entry.publish != nil {
			count++
		}
	})
	if count != 1 {
		t.Errorf("expected 1 publish entry, got %d", count)
	}
	if table.len() != 2 {
		t.Errorf("walk must not remove entries, len = %d", table.len())
	}
}
