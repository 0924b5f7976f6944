// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package topics_test

import (
	"testing"

	"github.com/absmach/mqttagent/topics"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		topic   string
		wantErr bool
	}{
		{"valid/topic", false},
		{"a", false},
		{"$SYS/broker", false},
		{"invalid/+", true},
		{"invalid/#", true},
		{"", true},
		{string([]byte{0xFF, 0xFE}), true}, // Invalid UTF-8
	}

	for _, tt := range tests {
		if err := topics.ValidateName(tt.topic); (err != nil) != tt.wantErr {
			t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.topic, err, tt.wantErr)
		}
	}
}

func TestValidateFilter(t *testing.T) {
	tests := []struct {
		filter  string
		wantErr bool
	}{
		{"a/b", false},
		{"a/+/c", false},
		{"a/#", false},
		{"#", false},
		{"+", false},
		{"", true},
		{"a/#/b", true},  // '#' not last
		{"a/b#", true},   // '#' not alone in level
		{"a/b+/c", true}, // '+' not alone in level
		{string([]byte{0xFF, 0xFE}), true},
	}

	for _, tt := range tests {
		if err := topics.ValidateFilter(tt.filter); (err != nil) != tt.wantErr {
			t.Errorf("ValidateFilter(%q) error = %v, wantErr %v", tt.filter, err, tt.wantErr)
		}
	}
}
