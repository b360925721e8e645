package geode

import (
	"reflect"

	"github.com/Fleeym/geode/internal/eventcenter"
)

// Observer is a live event subscription, removable via RemoveObserver.
type Observer = eventcenter.Observer

// EventInfo describes a subscription: a selector plus the payload type
// carried as the type parameter.
type EventInfo[T any] struct {
	Selector string
}

// Event is one delivered occurrence.
type Event[T any] struct {
	Selector string
	Payload  T
}

// RegisterObserver subscribes cb to selector on the process-wide
// Interface. The subscription is always attributed to the current mod:
// registered before the mod exists, it is deferred and materializes right
// after attach, so ownership is never lost. In that deferred case the
// returned Observer is nil — the same placeholder semantics as a
// pre-attach AddHook.
func RegisterObserver[T any](selector string, cb func(Event[T])) *Observer {
	return RegisterObserverOn[T](Get(), selector, cb)
}

// RegisterObserverInfo is RegisterObserver with a full EventInfo
// descriptor.
func RegisterObserverInfo[T any](info EventInfo[T], cb func(Event[T])) *Observer {
	return RegisterObserverOn[T](Get(), info.Selector, cb)
}

// RegisterObserverOn subscribes cb on a specific Interface. Multi-mod
// hosts use this with each mod's own façade.
func RegisterObserverOn[T any](i *Interface, selector string, cb func(Event[T])) *Observer {
	if m := i.Mod(); m != nil {
		return registerFor[T](m, selector, cb)
	}
	i.ScheduleOnLoad(func(m *Mod) {
		registerFor[T](m, selector, cb)
	})
	return nil
}

func registerFor[T any](m *Mod, selector string, cb func(Event[T])) *Observer {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	return eventcenter.Register(m.Slug(), selector, typ, func(payload interface{}) {
		cb(Event[T]{Selector: selector, Payload: payload.(T)})
	})
}

// RemoveObserver drops a subscription returned by a Register call.
func RemoveObserver(o *Observer) {
	eventcenter.Remove(o)
}

// PostEvent publishes payload to every observer of selector whose payload
// type matches. Delivery is synchronous and panic-isolated per observer.
func PostEvent[T any](selector string, payload T) {
	eventcenter.Post(selector, payload)
}
