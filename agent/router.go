// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"sync"

	"github.com/absmach/mqttagent/topics"
)

type route struct {
	filter  string
	handler PublishHandler
}

// router fans incoming publishes out to handlers registered per topic
// filter. Registration happens on producer goroutines; dispatch happens on
// the worker, so the route list is guarded.
type router struct {
	mu     sync.RWMutex
	routes []route
}

func newRouter() *router {
	return &router{}
}

func (r *router) add(filter string, h PublishHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.routes {
		if r.routes[i].filter == filter {
			r.routes[i].handler = h
			return
		}
	}
	r.routes = append(r.routes, route{filter: filter, handler: h})
}

func (r *router) remove(filter string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.routes {
		if r.routes[i].filter == filter {
			r.routes = append(r.routes[:i], r.routes[i+1:]...)
			return
		}
	}
}

// dispatch invokes every handler whose filter matches the topic and reports
// whether any claimed the message.
func (r *router) dispatch(userdata any, msg *Message) bool {
	r.mu.RLock()
	matched := make([]PublishHandler, 0, 2)
	for i := range r.routes {
		if topics.Match(r.routes[i].filter, msg.Topic) {
			matched = append(matched, r.routes[i].handler)
		}
	}
	r.mu.RUnlock()

	for _, h := range matched {
		h(userdata, msg)
	}
	return len(matched) > 0
}
