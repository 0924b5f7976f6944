// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package topics

import "strings"

// Match checks if the topic matches the given filter according to MQTT
// wildcard rules. The filter can contain '+' (single level) and '#'
// (multi-level, last level only); the topic must not contain wildcards.
// Topics starting with '$' are matched only by filters that spell out the
// '$' level explicitly.
func Match(filter, topic string) bool {
	if filter == "" || topic == "" {
		return false
	}
	if filter == topic {
		return true
	}

	filterLevels := strings.Split(filter, "/")
	topicLevels := strings.Split(topic, "/")

	if strings.HasPrefix(topic, "$") {
		if filterLevels[0] == "+" || filterLevels[0] == "#" {
			return false
		}
	}

	for i, fLevel := range filterLevels {
		if fLevel == "#" {
			// # matches the parent level and everything below it.
			return true
		}
		if i >= len(topicLevels) {
			return false
		}
		if fLevel == "+" {
			continue
		}
		if fLevel != topicLevels[i] {
			return false
		}
	}

	return len(filterLevels) == len(topicLevels)
}
