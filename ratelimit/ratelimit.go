// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit bounds outbound publish rates on the producer side.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TopicLimiter manages per-topic token buckets for outbound publishes.
// All topics share the same rate and burst; buckets for topics not published
// to for a while are dropped by a background cleanup loop.
type TopicLimiter struct {
	mu       sync.Mutex
	limiters map[string]*topicEntry
	rate     rate.Limit
	burst    int
	cleanup  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

type topicEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTopicLimiter creates a per-topic publish limiter. r is publishes per
// second, burst the burst allowance.
func NewTopicLimiter(r float64, burst int, cleanupInterval time.Duration) *TopicLimiter {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	l := &TopicLimiter{
		limiters: make(map[string]*topicEntry),
		rate:     rate.Limit(r),
		burst:    burst,
		cleanup:  cleanupInterval,
		stopCh:   make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether one more publish to the topic is within the limit.
func (l *TopicLimiter) Allow(topic string) bool {
	l.mu.Lock()
	entry, exists := l.limiters[topic]
	if !exists {
		entry = &topicEntry{
			limiter:  rate.NewLimiter(l.rate, l.burst),
			lastSeen: time.Now(),
		}
		l.limiters[topic] = entry
	} else {
		entry.lastSeen = time.Now()
	}
	limiter := entry.limiter
	l.mu.Unlock()

	return limiter.Allow()
}

func (l *TopicLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.dropStale()
		case <-l.stopCh:
			return
		}
	}
}

func (l *TopicLimiter) dropStale() {
	l.mu.Lock()
	defer l.mu.Unlock()

	threshold := time.Now().Add(-l.cleanup * 2)
	for topic, entry := range l.limiters {
		if entry.lastSeen.Before(threshold) {
			delete(l.limiters, topic)
		}
	}
}

// Stop stops the cleanup goroutine.
func (l *TopicLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}
