// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package backchannel

import (
	"sort"
	"strings"
	"sync"

	"github.com/bureau-foundation/remotesession/osc"
)

// Handler receives messages dispatched to an address it subscribed to.
type Handler interface {
	HandleMessage(message *osc.Message, dispatch *DispatchMap)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(message *osc.Message, dispatch *DispatchMap)

// HandleMessage calls f.
func (f HandlerFunc) HandleMessage(message *osc.Message, dispatch *DispatchMap) {
	f(message, dispatch)
}

// AddressHandler is the ordered subscriber list for one address.
type AddressHandler struct {
	address string
	owner   *DispatchMap
}

// Address returns the address this list is registered under.
func (a *AddressHandler) Address() string { return a.address }

// AddHandler subscribes handler. Handlers run in subscription order.
func (a *AddressHandler) AddHandler(handler Handler) {
	a.owner.mu.Lock()
	defer a.owner.mu.Unlock()
	a.owner.handlers[a.address] = append(a.owner.handlers[a.address], handler)
}

// AddHandlerFunc subscribes a function.
func (a *AddressHandler) AddHandlerFunc(function func(*osc.Message, *DispatchMap)) {
	a.AddHandler(HandlerFunc(function))
}

// DispatchMap routes messages to handlers by address.
//
// An address ending in '/' is a prefix subscription: it receives every
// message whose address begins with it. Other addresses match exactly.
// A message is delivered to its exact subscribers first and then to
// each matching prefix, longest prefix first.
type DispatchMap struct {
	mu       sync.RWMutex
	lists    map[string]*AddressHandler
	handlers map[string][]Handler
	prefixes []string
}

// NewDispatchMap returns an empty map.
func NewDispatchMap() *DispatchMap {
	return &DispatchMap{
		lists:    make(map[string]*AddressHandler),
		handlers: make(map[string][]Handler),
	}
}

// GetAddressHandler returns the subscriber list for address, creating
// it on first use.
func (d *DispatchMap) GetAddressHandler(address string) *AddressHandler {
	d.mu.Lock()
	defer d.mu.Unlock()
	if list, ok := d.lists[address]; ok {
		return list
	}
	list := &AddressHandler{address: address, owner: d}
	d.lists[address] = list
	if strings.HasSuffix(address, "/") {
		d.prefixes = append(d.prefixes, address)
		sort.Slice(d.prefixes, func(i, j int) bool {
			return len(d.prefixes[i]) > len(d.prefixes[j])
		})
	}
	return list
}

// Dispatch delivers message to every matching handler on the calling
// goroutine and reports whether any handler matched. The message's
// read cursor is rewound before each handler.
func (d *DispatchMap) Dispatch(message *osc.Message) bool {
	matched := d.match(message.Address)
	for _, handler := range matched {
		message.Rewind()
		handler.HandleMessage(message, d)
	}
	return len(matched) > 0
}

func (d *DispatchMap) match(address string) []Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var matched []Handler
	matched = append(matched, d.handlers[address]...)
	for _, prefix := range d.prefixes {
		if prefix != address && strings.HasPrefix(address, prefix) {
			matched = append(matched, d.handlers[prefix]...)
		}
	}
	return matched
}
