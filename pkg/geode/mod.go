package geode

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/Fleeym/geode/internal/detour"
	"github.com/Fleeym/geode/internal/eventcenter"
	"github.com/Fleeym/geode/internal/shared"
	"github.com/Fleeym/geode/internal/store"
)

// ModOptions carries the collaborators a Mod needs. The loader fills this
// in; tests usually pass a detour.Recorder and an in-memory store.
type ModOptions struct {
	// Backend performs physical hook installation. Required.
	Backend detour.Backend

	// Store persists saved values across runs. Optional.
	Store *store.Store

	// Sink receives the mod's log records. Defaults to the process-wide
	// log callback.
	Sink LogSink
}

// Mod is the fully-initialized per-module context. It owns the module's
// hooks (insertion order = install order), its logger, its export table
// and its saved values, and it is the only component that performs
// physical hook installation.
//
// A Mod is constructed exactly once by the loader when the module is
// activated and lives until explicit unload.
type Mod struct {
	id   string
	slug string

	mu      sync.RWMutex
	hooks   []*Hook
	byAddr  map[uintptr]*Hook
	exports map[string]exportEntry

	backend  detour.Backend
	store    *store.Store
	logger   Logger
	sink     LogSink
	savedDoc string
	unloaded bool
}

// NewMod constructs the module context for slug. Called by the loader;
// mods themselves never construct one.
func NewMod(slug string, opts ModOptions) (*Mod, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("mod %s: no hook backend", slug)
	}
	sink := opts.Sink
	if sink == nil {
		sink = sharedSink{}
	}

	m := &Mod{
		id:       uuid.NewString(),
		slug:     slug,
		byAddr:   make(map[uintptr]*Hook),
		exports:  make(map[string]exportEntry),
		backend:  opts.Backend,
		store:    opts.Store,
		sink:     sink,
		savedDoc: "{}",
	}
	m.logger = &logger{tag: slug, sink: sink}

	if m.store != nil {
		doc, err := m.store.Load(slug)
		if err != nil {
			return nil, err
		}
		m.savedDoc = doc
	}
	return m, nil
}

// ID returns the mod's unique instance id.
func (m *Mod) ID() string { return m.id }

// Slug returns the mod's identifier.
func (m *Mod) Slug() string { return m.slug }

// Logger returns the mod's logger (tag = slug).
func (m *Mod) Logger() Logger { return m.logger }

// Log forwards one record to the mod's sink.
func (m *Mod) Log(severity Severity, message string) {
	m.sink.Log(severity, m.slug, message)
}

// ── hooks ─────────────────────────────────────────────────────

// AddHook installs a detour at address with an empty display name.
func (m *Mod) AddHook(address uintptr, fn interface{}, conv Convention) (*Hook, error) {
	return m.AddHookNamed("", address, fn, conv)
}

// AddHookNamed installs a detour at address. The display name is what the
// loader shows instead of a bare address in hook listings.
func (m *Mod) AddHookNamed(displayName string, address uintptr, fn interface{}, conv Convention) (*Hook, error) {
	if fn == nil {
		return nil, detour.ErrNilDetour
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unloaded {
		return nil, fmt.Errorf("mod %s: already unloaded", m.slug)
	}
	if _, exists := m.byAddr[address]; exists {
		return nil, fmt.Errorf("mod %s: %w at %#x", m.slug, detour.ErrDuplicateHook, address)
	}

	handle, err := m.backend.Install(address, fn, conv, displayName)
	if err != nil {
		return nil, fmt.Errorf("mod %s: install hook at %#x: %w", m.slug, address, err)
	}

	h := &Hook{
		owner:       m,
		handle:      handle,
		address:     address,
		displayName: displayName,
		conv:        conv,
		enabled:     true,
	}
	m.hooks = append(m.hooks, h)
	m.byAddr[address] = h
	return h, nil
}

// RemoveHook uninstalls a hook and forgets it. The address becomes
// hookable again afterwards.
func (m *Mod) RemoveHook(h *Hook) error {
	if h == nil || h.owner != m {
		return detour.ErrNotInstalled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.byAddr[h.address]; !ok || cur != h {
		return detour.ErrNotInstalled
	}
	if err := m.backend.Remove(h.handle); err != nil {
		return err
	}
	delete(m.byAddr, h.address)
	for i, e := range m.hooks {
		if e == h {
			m.hooks = append(m.hooks[:i], m.hooks[i+1:]...)
			break
		}
	}
	return nil
}

// Hooks returns the mod's hooks in install order.
func (m *Mod) Hooks() []*Hook {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Hook, len(m.hooks))
	copy(out, m.hooks)
	return out
}

// ── export table ──────────────────────────────────────────────

// ExportFunction publishes a free function under selector. Re-exporting
// the same selector overwrites the previous entry.
func (m *Mod) ExportFunction(selector string, fn interface{}) {
	if fn == nil {
		shared.LogWarning(m.slug, "Ignoring nil export for selector '%s'", selector)
		return
	}
	m.mu.Lock()
	m.exports[selector] = exportEntry{kind: ExportFree, fn: fn}
	m.mu.Unlock()
}

// ExportMethod publishes a method bound to recv under selector. The
// method is given as a method expression whose first parameter accepts
// recv; lookups see an ordinary callable with that parameter applied.
func (m *Mod) ExportMethod(selector string, recv, method interface{}) {
	bound := bindMethod(recv, method)
	if bound == nil {
		shared.LogWarning(m.slug, "Ignoring invalid method export for selector '%s'", selector)
		return
	}
	m.mu.Lock()
	m.exports[selector] = exportEntry{kind: ExportBound, fn: bound}
	m.mu.Unlock()
}

// LookupExport returns the callable published under selector. The caller
// type-asserts it to the agreed signature; the table is an intentionally
// unchecked, convention-based cross-module ABI.
func (m *Mod) LookupExport(selector string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exports[selector]
	if !ok {
		return nil, false
	}
	return e.fn, true
}

// ExportKindOf reports how selector was exported.
func (m *Mod) ExportKindOf(selector string) (ExportKind, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exports[selector]
	return e.kind, ok
}

// ── saved values ──────────────────────────────────────────────

// SetSavedValue stores value under a gjson-style path in the mod's saved
// document. Persisted on unload (or explicitly via SaveValues).
func (m *Mod) SetSavedValue(path string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := sjson.Set(m.savedDoc, path, value)
	if err != nil {
		return fmt.Errorf("mod %s: set saved value %s: %w", m.slug, path, err)
	}
	m.savedDoc = doc
	return nil
}

// SavedValue reads a value by path from the mod's saved document.
func (m *Mod) SavedValue(path string) gjson.Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return gjson.Get(m.savedDoc, path)
}

// SaveValues persists the saved document now. No-op without a store.
func (m *Mod) SaveValues() error {
	m.mu.RLock()
	doc := m.savedDoc
	m.mu.RUnlock()

	if m.store == nil {
		return nil
	}
	return m.store.Save(m.slug, doc)
}

// ── lifecycle ─────────────────────────────────────────────────

// Unload tears the mod down: every installed hook is removed first, the
// mod's observers are dropped, saved values are persisted. The Mod is
// unusable afterwards.
func (m *Mod) Unload() error {
	m.mu.Lock()
	if m.unloaded {
		m.mu.Unlock()
		return nil
	}
	m.unloaded = true
	hooks := m.hooks
	m.hooks = nil
	m.byAddr = make(map[uintptr]*Hook)
	m.exports = make(map[string]exportEntry)
	m.mu.Unlock()

	var firstErr error
	for _, h := range hooks {
		if err := m.backend.Remove(h.handle); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("mod %s: remove hook at %#x: %w", m.slug, h.address, err)
		}
	}

	eventcenter.RemoveAllForOwner(m.slug)

	if err := m.SaveValues(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
