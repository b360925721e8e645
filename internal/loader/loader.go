// Package loader owns mod lifecycle: registration of mod descriptors,
// construction of the per-mod context, attaching it to the mod's
// scheduling façade, and teardown. It is the only caller of
// Interface.Init.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/Fleeym/geode/internal/detour"
	"github.com/Fleeym/geode/internal/shared"
	"github.com/Fleeym/geode/internal/store"
	"github.com/Fleeym/geode/pkg/geode"
)

// State represents the current lifecycle state of a mod.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateUnloading
	StateFailed
	StateDisabled // disabled via config
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "Unloaded"
	case StateLoading:
		return "Loading"
	case StateLoaded:
		return "Loaded"
	case StateUnloading:
		return "Unloading"
	case StateFailed:
		return "Failed"
	case StateDisabled:
		return "Disabled"
	default:
		return "Unknown"
	}
}

// slugRegex validates mod slugs: start with a letter, letters/numbers/
// underscores/hyphens only, 2-32 chars.
var slugRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{1,31}$`)

// reservedSlugs cannot be used by mods.
var reservedSlugs = []string{"geode", "loader", "core", "internal", "mod", "mods"}

func validateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("slug cannot be empty")
	}
	if !slugRegex.MatchString(slug) {
		return fmt.Errorf("invalid slug '%s': must start with a letter, contain only letters/numbers/underscores/hyphens, 2-32 chars", slug)
	}
	lower := strings.ToLower(slug)
	for _, reserved := range reservedSlugs {
		if lower == reserved {
			return fmt.Errorf("slug '%s' is reserved", slug)
		}
	}
	return nil
}

// Descriptor is what a mod registers about itself, usually from init().
type Descriptor struct {
	Slug        string
	Name        string
	Version     string
	Developer   string
	Description string

	// Interface is the mod's scheduling façade. Nil means the process-wide
	// one, which is fine for single-mod hosts.
	Interface *geode.Interface
}

// Info is the externally visible snapshot of one registered mod.
type Info struct {
	ID          string
	Slug        string
	Name        string
	Version     string
	Developer   string
	Description string
	State       State
	Error       string
}

type modEntry struct {
	desc  Descriptor
	iface *geode.Interface
	mod   *geode.Mod
	state State
	err   error
}

// Options carries the collaborators the loader hands to every mod.
type Options struct {
	// Backend performs physical hook installation. Required.
	Backend detour.Backend

	// Store persists saved values. Optional.
	Store *store.Store

	// Sink routes mod log records. Defaults to the process log callback.
	Sink geode.LogSink

	// ConfigPath is the mods config file. Defaults to "configs/mods.json".
	ConfigPath string
}

var (
	mu        sync.RWMutex
	entries   []*modEntry
	slugIndex = make(map[string]*modEntry)

	options   Options
	configDoc string
)

// Register records a mod descriptor for the next LoadAll. Called from mod
// packages' init() functions, before any loader state exists.
func Register(d Descriptor) error {
	if err := validateSlug(d.Slug); err != nil {
		shared.LogError("Loader", "Rejecting mod registration: %v", err)
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	key := strings.ToLower(d.Slug)
	if existing, ok := slugIndex[key]; ok {
		err := fmt.Errorf("slug '%s' already used by mod %s", d.Slug, existing.desc.Name)
		shared.LogError("Loader", "Rejecting mod registration: %v", err)
		return err
	}

	iface := d.Interface
	if iface == nil {
		iface = geode.Get()
	}
	e := &modEntry{desc: d, iface: iface, state: StateUnloaded}
	entries = append(entries, e)
	slugIndex[key] = e

	shared.LogInfo("Loader", "Registered mod: %s (slug: %s) v%s by %s",
		d.Name, d.Slug, d.Version, d.Developer)
	return nil
}

// ── config ────────────────────────────────────────────────────

func configPath() string {
	if options.ConfigPath != "" {
		return options.ConfigPath
	}
	return filepath.Join("configs", "mods.json")
}

func loadConfig() {
	data, err := os.ReadFile(configPath())
	if err != nil {
		// No config: enable everything by default.
		configDoc = `{"auto_enable_new":true,"mods":{}}`
		return
	}
	if !gjson.ValidBytes(data) {
		shared.LogError("Loader", "Failed to parse %s, using defaults", configPath())
		configDoc = `{"auto_enable_new":true,"mods":{}}`
		return
	}
	configDoc = string(data)
}

func isEnabled(slug string) bool {
	entry := gjson.Get(configDoc, "mods."+slug+".enabled")
	if !entry.Exists() {
		auto := gjson.Get(configDoc, "auto_enable_new")
		return !auto.Exists() || auto.Bool()
	}
	return entry.Bool()
}

// SetEnabled flips a mod's enabled flag and persists the config file.
// Takes effect on the next LoadAll.
func SetEnabled(slug string, enabled bool) error {
	mu.Lock()
	defer mu.Unlock()

	doc, err := sjson.Set(configDoc, "mods."+slug+".enabled", enabled)
	if err != nil {
		return fmt.Errorf("update config for %s: %w", slug, err)
	}
	configDoc = doc

	path := configPath()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(configDoc), 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ── lifecycle ─────────────────────────────────────────────────

// LoadAll constructs a Mod for every enabled registered descriptor, in
// registration order, and attaches it to the descriptor's Interface —
// which flushes everything the mod scheduled before it existed.
//
// Attachment runs without the package lock held: load callbacks fire
// inside Init and may call back into the loader (Find on an earlier
// mod's exports, Register for a companion mod). Each entry's state is
// committed under the lock before the next one loads, so a dependent's
// callback sees its dependencies as Loaded.
func LoadAll(opts Options) error {
	if opts.Backend == nil {
		return fmt.Errorf("loader: no hook backend")
	}

	mu.Lock()
	options = opts
	loadConfig()

	shared.LogInfo("Loader", "Loading %d registered mods...", len(entries))
	pending := make([]*modEntry, 0, len(entries))
	for _, e := range entries {
		if e.state == StateLoaded {
			continue
		}
		if !isEnabled(e.desc.Slug) {
			e.state = StateDisabled
			shared.LogInfo("Loader", "Mod %s is disabled, skipping", e.desc.Slug)
			continue
		}
		e.state = StateLoading
		pending = append(pending, e)
	}
	mu.Unlock()

	var firstErr error
	for _, e := range pending {
		if err := loadEntry(e, opts); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func loadEntry(e *modEntry, opts Options) error {
	mod, err := geode.NewMod(e.desc.Slug, geode.ModOptions{
		Backend: opts.Backend,
		Store:   opts.Store,
		Sink:    opts.Sink,
	})
	if err != nil {
		failEntry(e, err)
		shared.LogError("Loader", "Failed to construct mod %s: %v", e.desc.Slug, err)
		return err
	}

	if pending := e.iface.Pending(); pending > 0 {
		shared.LogDebug("Loader", "Flushing %d scheduled entries for %s", pending, e.desc.Slug)
	}
	if err := e.iface.Init(mod); err != nil {
		failEntry(e, err)
		shared.LogError("Loader", "Failed to attach mod %s: %v", e.desc.Slug, err)
		return err
	}

	mu.Lock()
	e.mod = mod
	e.state = StateLoaded
	e.err = nil
	mu.Unlock()

	shared.LogInfo("Loader", "Loaded mod %s v%s (%d hooks)",
		e.desc.Slug, e.desc.Version, len(mod.Hooks()))
	return nil
}

func failEntry(e *modEntry, err error) {
	mu.Lock()
	e.state = StateFailed
	e.err = err
	mu.Unlock()
}

// Unload tears one mod down: hooks removed, observers dropped, saved
// values persisted. The mod's Interface stays attached to the dead Mod —
// reattachment is rejected by design, so an unloaded mod does not come
// back within the same process.
func Unload(slug string) error {
	mu.Lock()
	defer mu.Unlock()
	return unloadLocked(slug)
}

func unloadLocked(slug string) error {
	e, ok := slugIndex[strings.ToLower(slug)]
	if !ok {
		return fmt.Errorf("unknown mod '%s'", slug)
	}
	if e.state != StateLoaded {
		return fmt.Errorf("mod '%s' is not loaded (state: %s)", slug, e.state)
	}

	e.state = StateUnloading
	if err := e.mod.Unload(); err != nil {
		e.state = StateFailed
		e.err = err
		return fmt.Errorf("unload mod %s: %w", slug, err)
	}
	e.state = StateUnloaded
	shared.LogInfo("Loader", "Unloaded mod %s", slug)
	return nil
}

// UnloadAll unloads every loaded mod in reverse registration order.
func UnloadAll() {
	mu.Lock()
	defer mu.Unlock()

	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].state == StateLoaded {
			if err := unloadLocked(entries[i].desc.Slug); err != nil {
				shared.LogError("Loader", "%v", err)
			}
		}
	}
}

// Find returns the live Mod for slug, or nil. This is how one mod reaches
// another's export table.
func Find(slug string) *geode.Mod {
	mu.RLock()
	defer mu.RUnlock()

	e, ok := slugIndex[strings.ToLower(slug)]
	if !ok || e.state != StateLoaded {
		return nil
	}
	return e.mod
}

// Infos returns a snapshot of every registered mod in registration order.
func Infos() []Info {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		info := Info{
			Slug:        e.desc.Slug,
			Name:        e.desc.Name,
			Version:     e.desc.Version,
			Developer:   e.desc.Developer,
			Description: e.desc.Description,
			State:       e.state,
		}
		if e.mod != nil {
			info.ID = e.mod.ID()
		}
		if e.err != nil {
			info.Error = e.err.Error()
		}
		out = append(out, info)
	}
	return out
}

// Reset drops all loader state. Test helper.
func Reset() {
	mu.Lock()
	defer mu.Unlock()

	entries = nil
	slugIndex = make(map[string]*modEntry)
	options = Options{}
	configDoc = ""
}
