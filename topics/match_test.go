// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package topics_test

import (
	"testing"

	"github.com/absmach/mqttagent/topics"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"a/b/c", "a/b/c", true},
		{"a/+/c", "a/b/c", true},
		{"a/+/c", "a/b/d", false},
		{"a/#", "a/b/c", true},
		{"a/#", "a", true},
		{"#", "a/b", true},
		{"a/+", "a", false},
		{"a/b", "a/b/c", false},
		{"+/+", "a/b", true},
		{"+", "$SYS/broker", false},
		{"#", "$SYS/broker", false},
		{"$SYS/#", "$SYS/broker", true},
		{"", "a", false},
		{"a", "", false},
	}

	for _, tt := range tests {
		if got := topics.Match(tt.filter, tt.topic); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
		}
	}
}
