package eventcenter

import (
	"reflect"
	"testing"
)

type pingPayload struct {
	N int
}

type textPayload struct {
	S string
}

var (
	pingType = reflect.TypeOf(pingPayload{})
	textType = reflect.TypeOf(textPayload{})
)

// ── registration and dispatch ─────────────────────────────────

func TestPostDeliversMatchingType(t *testing.T) {
	defer Reset()

	var got []int
	Register("mod-a", "ping", pingType, func(p interface{}) {
		got = append(got, p.(pingPayload).N)
	})

	Post("ping", pingPayload{N: 1})
	Post("ping", pingPayload{N: 2})
	Post("ping", textPayload{S: "wrong type"})
	Post("other-selector", pingPayload{N: 3})

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("got = %v, want [1 2]", got)
	}
}

func TestPostFansOutInRegistrationOrder(t *testing.T) {
	defer Reset()

	var order []string
	Register("mod-a", "ping", pingType, func(interface{}) { order = append(order, "a") })
	Register("mod-b", "ping", pingType, func(interface{}) { order = append(order, "b") })
	Register("mod-c", "ping", pingType, func(interface{}) { order = append(order, "c") })

	Post("ping", pingPayload{})

	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestNilPayloadSkipsTypedObservers(t *testing.T) {
	defer Reset()

	typedFired := 0
	untypedFired := 0
	Register("mod-a", "ping", pingType, func(p interface{}) {
		typedFired++
		_ = p.(pingPayload) // would panic on nil
	})
	Register("mod-b", "ping", nil, func(interface{}) { untypedFired++ })

	Post("ping", nil)

	if typedFired != 0 {
		t.Error("typed observer received a nil payload")
	}
	if untypedFired != 1 {
		t.Errorf("untyped observer fired %d times, want 1", untypedFired)
	}
}

func TestPanickingObserverDoesNotStopDispatch(t *testing.T) {
	defer Reset()

	fired := false
	Register("mod-a", "ping", pingType, func(interface{}) { panic("broken observer") })
	Register("mod-b", "ping", pingType, func(interface{}) { fired = true })

	Post("ping", pingPayload{})

	if !fired {
		t.Error("observer after the panicking one never fired")
	}
}

// ── removal ───────────────────────────────────────────────────

func TestRemoveSingleObserver(t *testing.T) {
	defer Reset()

	fired := 0
	o := Register("mod-a", "ping", pingType, func(interface{}) { fired++ })

	Post("ping", pingPayload{})
	Remove(o)
	Remove(o) // second removal is a no-op
	Remove(nil)
	Post("ping", pingPayload{})

	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
	if CountFor("ping") != 0 {
		t.Errorf("CountFor = %d, want 0", CountFor("ping"))
	}
}

func TestRemoveAllForOwner(t *testing.T) {
	defer Reset()

	Register("mod-a", "ping", pingType, func(interface{}) {})
	Register("mod-a", "text", textType, func(interface{}) {})
	Register("mod-b", "ping", pingType, func(interface{}) {})

	RemoveAllForOwner("mod-a")

	if CountFor("ping") != 1 {
		t.Errorf("CountFor(ping) = %d, want 1", CountFor("ping"))
	}
	if CountFor("text") != 0 {
		t.Errorf("CountFor(text) = %d, want 0", CountFor("text"))
	}
}
