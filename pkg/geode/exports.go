package geode

import "reflect"

// ExportKind distinguishes the two call shapes an exported API function
// can have. The distinction is made at the export site and carried as a
// tag, so lookups can rebuild a plain callable either way.
type ExportKind int

const (
	// ExportFree is a free function exported as-is.
	ExportFree ExportKind = iota
	// ExportBound is a method bound to a receiver at export time.
	ExportBound
)

// String returns the kind name.
func (k ExportKind) String() string {
	switch k {
	case ExportFree:
		return "Free"
	case ExportBound:
		return "Bound"
	default:
		return "Unknown"
	}
}

// exportEntry is one row of a Mod's export table.
type exportEntry struct {
	kind ExportKind
	// fn holds the callable. For ExportBound this is the already-bound
	// method value, so lookups are kind-agnostic.
	fn interface{}
}

// setExport installs one table row. Used by the flush path, which already
// holds a finished entry.
func (m *Mod) setExport(selector string, e exportEntry) {
	m.mu.Lock()
	m.exports[selector] = e
	m.mu.Unlock()
}

// bindMethod turns (receiver, method expression) into a bound callable.
// method must be a func whose first parameter accepts recv; the returned
// value is a func with that first parameter applied.
func bindMethod(recv, method interface{}) interface{} {
	mv := reflect.ValueOf(method)
	if mv.Kind() != reflect.Func {
		return nil
	}
	mt := mv.Type()
	if mt.NumIn() == 0 {
		return nil
	}
	rv := reflect.ValueOf(recv)
	if !rv.IsValid() || !rv.Type().AssignableTo(mt.In(0)) {
		return nil
	}

	in := make([]reflect.Type, 0, mt.NumIn()-1)
	for i := 1; i < mt.NumIn(); i++ {
		in = append(in, mt.In(i))
	}
	out := make([]reflect.Type, 0, mt.NumOut())
	for i := 0; i < mt.NumOut(); i++ {
		out = append(out, mt.Out(i))
	}

	bound := reflect.MakeFunc(reflect.FuncOf(in, out, mt.IsVariadic()), func(args []reflect.Value) []reflect.Value {
		full := append([]reflect.Value{rv}, args...)
		if mt.IsVariadic() {
			return mv.CallSlice(full)
		}
		return mv.Call(full)
	})
	return bound.Interface()
}
