package geode

import (
	"errors"
	"sync"

	"github.com/eapache/queue"
)

// ErrAlreadyAttached is returned by Interface.Init when a mod is already
// attached. A second Init never re-runs the flush and never swaps the mod.
var ErrAlreadyAttached = errors.New("interface already has a mod attached")

// ErrNilMod is returned by Interface.Init when given a nil mod.
var ErrNilMod = errors.New("cannot attach a nil mod")

// installFunc replays one deferred hook request against a live Mod. It is
// created at the scheduling call site, where the detour and its calling
// convention are still known, and stored type-erased in the queue.
type installFunc func(m *Mod, displayName string, address uintptr) (*Hook, error)

type scheduledHook struct {
	displayName string
	address     uintptr
	install     installFunc
}

type scheduledLog struct {
	message  string
	severity Severity
}

type scheduledExport struct {
	selector string
	entry    exportEntry
}

// LoadFunc runs once, with the newly-attached Mod, after all other
// buffered entries have been flushed.
type LoadFunc func(m *Mod)

// Interface is the scheduling façade between static-initialization-time
// code and the Mod the loader will eventually construct. Hook requests,
// log records, API exports and load callbacks issued before a Mod exists
// are buffered in order; Init replays them all against the real Mod and
// empties the buffers for good.
//
// Buffers are populated during single-threaded static-init / load phases
// and flushed on the loader thread; the Interface itself takes no locks
// around them. Callers scheduling from worker threads must synchronize
// externally.
type Interface struct {
	mod *Mod

	scheduledHooks   *queue.Queue
	scheduledLogs    *queue.Queue
	scheduledExports *queue.Queue
	scheduledFuncs   *queue.Queue
}

// NewInterface returns a fresh, detached Interface. Hosts that load
// several mods in one process give each mod its own.
func NewInterface() *Interface {
	return &Interface{
		scheduledHooks:   queue.New(),
		scheduledLogs:    queue.New(),
		scheduledExports: queue.New(),
		scheduledFuncs:   queue.New(),
	}
}

var (
	processOnce  sync.Once
	processIface *Interface
)

// Get returns the process-wide Interface, creating it on first call. Safe
// from static-initialization-time code: it never returns nil and needs no
// Mod to exist.
func Get() *Interface {
	processOnce.Do(func() {
		processIface = NewInterface()
	})
	return processIface
}

// CurrentMod returns the mod attached to the process-wide Interface, or
// nil before Init. Explicit replacement for ambient mod globals.
func CurrentMod() *Mod {
	return Get().Mod()
}

// Mod returns the attached mod, or nil while detached.
func (i *Interface) Mod() *Mod {
	return i.mod
}

// Attached reports whether a mod has been attached.
func (i *Interface) Attached() bool {
	return i.mod != nil
}

// Pending returns how many entries are buffered across all four queues.
func (i *Interface) Pending() int {
	return i.scheduledHooks.Length() +
		i.scheduledLogs.Length() +
		i.scheduledExports.Length() +
		i.scheduledFuncs.Length()
}

// Init attaches m and replays every buffered entry against it, in order:
// hooks, then logs, then exports, then load callbacks. A hook whose
// install fails is reported through m's logger and the flush continues;
// the remaining entries are never skipped. Afterwards all buffers are
// empty and stay empty — later scheduling calls go straight to m.
//
// Init on an already-attached Interface returns ErrAlreadyAttached and
// changes nothing.
func (i *Interface) Init(m *Mod) error {
	if m == nil {
		return ErrNilMod
	}
	if i.mod != nil {
		return ErrAlreadyAttached
	}
	i.mod = m

	for i.scheduledHooks.Length() > 0 {
		sh := i.scheduledHooks.Remove().(scheduledHook)
		if _, err := sh.install(m, sh.displayName, sh.address); err != nil {
			// The scheduler already got its placeholder success; the real
			// result surfaces here, on the mod's own log.
			name := sh.displayName
			if name == "" {
				name = "(unnamed)"
			}
			m.Logger().Error("Failed to install scheduled hook %s at %#x: %v", name, sh.address, err)
		}
	}

	for i.scheduledLogs.Length() > 0 {
		sl := i.scheduledLogs.Remove().(scheduledLog)
		m.Log(sl.severity, sl.message)
	}

	for i.scheduledExports.Length() > 0 {
		se := i.scheduledExports.Remove().(scheduledExport)
		m.setExport(se.selector, se.entry)
	}

	for i.scheduledFuncs.Length() > 0 {
		fn := i.scheduledFuncs.Remove().(LoadFunc)
		fn(m)
	}

	return nil
}

// AddHook creates a hook at address with an empty display name. See
// AddHookNamed.
func (i *Interface) AddHook(address uintptr, fn interface{}, conv Convention) (*Hook, error) {
	return i.AddHookNamed("", address, fn, conv)
}

// AddHookNamed creates a hook at address. Usable at static-initialization
// time: with no mod attached the request is buffered and (nil, nil) is
// returned — a placeholder success, since installation hasn't happened
// yet. Once a mod is attached the install runs immediately and the
// backend's real result is returned.
func (i *Interface) AddHookNamed(displayName string, address uintptr, fn interface{}, conv Convention) (*Hook, error) {
	if i.mod != nil {
		return i.mod.AddHookNamed(displayName, address, fn, conv)
	}
	i.scheduledHooks.Add(scheduledHook{
		displayName: displayName,
		address:     address,
		install: func(m *Mod, displayName string, address uintptr) (*Hook, error) {
			return m.AddHookNamed(displayName, address, fn, conv)
		},
	})
	return nil, nil
}

// LogInfo logs a record through the mod once one exists; before that the
// record is buffered and delivered at flush time.
func (i *Interface) LogInfo(message string, severity Severity) {
	if i.mod != nil {
		i.mod.Log(severity, message)
		return
	}
	i.scheduledLogs.Add(scheduledLog{message: message, severity: severity})
}

// ScheduleOnLoad arranges for fn to run exactly once with the attached
// Mod. Detached: fn is buffered and runs at the end of the flush. Already
// attached: fn runs immediately.
func (i *Interface) ScheduleOnLoad(fn LoadFunc) {
	if fn == nil {
		return
	}
	if i.mod != nil {
		fn(i.mod)
		return
	}
	i.scheduledFuncs.Add(fn)
}

// ExportFunction publishes a free function under selector, buffering the
// entry when no mod is attached yet.
func (i *Interface) ExportFunction(selector string, fn interface{}) {
	if i.mod != nil {
		i.mod.ExportFunction(selector, fn)
		return
	}
	if fn == nil {
		return
	}
	i.scheduledExports.Add(scheduledExport{
		selector: selector,
		entry:    exportEntry{kind: ExportFree, fn: fn},
	})
}

// ExportMethod publishes a method bound to recv under selector. The
// binding happens here, at the export site, so the buffered entry is an
// ordinary callable by the time it reaches the Mod.
func (i *Interface) ExportMethod(selector string, recv, method interface{}) {
	if i.mod != nil {
		i.mod.ExportMethod(selector, recv, method)
		return
	}
	bound := bindMethod(recv, method)
	if bound == nil {
		return
	}
	i.scheduledExports.Add(scheduledExport{
		selector: selector,
		entry:    exportEntry{kind: ExportBound, fn: bound},
	})
}
