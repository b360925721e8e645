// Package eventcenter provides the cross-module publish/subscribe bus:
// selector-keyed, typed-payload, with owner attribution so a module's
// subscriptions can be dropped in bulk when it unloads.
package eventcenter

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/Fleeym/geode/internal/shared"
)

// Observer is a live subscription record. It is keyed by
// (payload type, selector) and attributed to the owning module's slug.
type Observer struct {
	id       uint64
	owner    string
	selector string
	typ      reflect.Type
	callback func(payload interface{})
}

// Owner returns the slug of the module that registered this observer.
func (o *Observer) Owner() string { return o.owner }

// Selector returns the event selector this observer listens on.
func (o *Observer) Selector() string { return o.selector }

var (
	obsMu     sync.RWMutex
	observers = make(map[string][]*Observer) // selector -> observers
	nextObsID uint64
)

// Register subscribes a callback to (selector, payload type). The callback
// only fires for payloads assignable to typ.
func Register(owner, selector string, typ reflect.Type, callback func(payload interface{})) *Observer {
	o := &Observer{
		id:       atomic.AddUint64(&nextObsID, 1),
		owner:    owner,
		selector: selector,
		typ:      typ,
		callback: callback,
	}

	obsMu.Lock()
	observers[selector] = append(observers[selector], o)
	obsMu.Unlock()

	return o
}

// Remove drops a single observer.
func Remove(o *Observer) {
	if o == nil {
		return
	}

	obsMu.Lock()
	defer obsMu.Unlock()

	entries := observers[o.selector]
	for i, e := range entries {
		if e.id == o.id {
			observers[o.selector] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// RemoveAllForOwner drops every observer owned by slug. Called on unload.
func RemoveAllForOwner(slug string) {
	obsMu.Lock()
	defer obsMu.Unlock()

	for selector, entries := range observers {
		filtered := entries[:0]
		for _, o := range entries {
			if o.owner != slug {
				filtered = append(filtered, o)
			}
		}
		observers[selector] = filtered
	}
}

// Post delivers payload to every observer of selector whose registered
// type matches. Callbacks run synchronously with panic recovery so one
// broken observer cannot take down the dispatch.
func Post(selector string, payload interface{}) {
	obsMu.RLock()
	entries := make([]*Observer, len(observers[selector]))
	copy(entries, observers[selector])
	obsMu.RUnlock()

	pt := reflect.TypeOf(payload)
	for _, o := range entries {
		// A nil payload has no type to match, so typed observers never
		// see it; their callbacks assert the payload to a concrete type.
		if o.typ != nil && (pt == nil || !pt.AssignableTo(o.typ)) {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					shared.LogError("EventCenter", "Panic in observer %d for selector '%s': %v", o.id, selector, r)
				}
			}()
			o.callback(payload)
		}()
	}
}

// CountFor returns how many observers are registered for selector.
func CountFor(selector string) int {
	obsMu.RLock()
	defer obsMu.RUnlock()
	return len(observers[selector])
}

// Reset drops every observer. Test helper and teardown hook.
func Reset() {
	obsMu.Lock()
	defer obsMu.Unlock()
	observers = make(map[string][]*Observer)
}
