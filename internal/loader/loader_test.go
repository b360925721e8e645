package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Fleeym/geode/internal/detour"
	"github.com/Fleeym/geode/internal/store"
	"github.com/Fleeym/geode/pkg/geode"
)

// ── slug validation ───────────────────────────────────────────

func TestValidateSlug(t *testing.T) {
	cases := []struct {
		slug    string
		wantErr bool
	}{
		{"example", false},
		{"my-mod", false},
		{"my_mod_2", false},
		{"Ab", false},
		{"", true},
		{"a", true},              // too short
		{"1mod", true},           // must start with a letter
		{"-mod", true},           // must start with a letter
		{"my mod", true},         // no spaces
		{"my.mod", true},         // no dots
		{"geode", true},          // reserved
		{"Loader", true},         // reserved, case-insensitive
		{"abcdefghijklmnopqrstuvwxyz0123456", true}, // 33 chars
	}

	for _, c := range cases {
		err := validateSlug(c.slug)
		if (err != nil) != c.wantErr {
			t.Errorf("validateSlug(%q) err = %v, wantErr %v", c.slug, err, c.wantErr)
		}
	}
}

// ── registration ──────────────────────────────────────────────

func TestRegisterRejectsDuplicateSlug(t *testing.T) {
	defer Reset()

	d := Descriptor{Slug: "dup-mod", Name: "First", Interface: geode.NewInterface()}
	if err := Register(d); err != nil {
		t.Fatal(err)
	}
	// Case-insensitive match.
	d2 := Descriptor{Slug: "Dup-Mod", Name: "Second", Interface: geode.NewInterface()}
	if err := Register(d2); err == nil {
		t.Error("duplicate slug accepted")
	}
	if err := Register(Descriptor{Slug: "bad slug"}); err == nil {
		t.Error("invalid slug accepted")
	}
}

// ── load lifecycle ────────────────────────────────────────────

func TestLoadAllAttachesAndFlushes(t *testing.T) {
	defer Reset()

	iface := geode.NewInterface()
	loaded := false
	iface.ScheduleOnLoad(func(m *geode.Mod) { loaded = true })
	iface.AddHook(0x1000, func(self uintptr) bool { return true }, geode.ConvMember)

	if err := Register(Descriptor{
		Slug: "load-test", Name: "Load Test", Version: "1.0.0", Interface: iface,
	}); err != nil {
		t.Fatal(err)
	}

	backend := detour.NewRecorder()
	err := LoadAll(Options{
		Backend:    backend,
		ConfigPath: filepath.Join(t.TempDir(), "mods.json"),
	})
	if err != nil {
		t.Fatal(err)
	}

	if !loaded {
		t.Error("scheduled load callback never ran")
	}
	if backend.Count() != 1 {
		t.Errorf("backend.Count = %d, want 1", backend.Count())
	}

	m := Find("load-test")
	if m == nil {
		t.Fatal("Find returned nil for loaded mod")
	}
	if len(m.Hooks()) != 1 {
		t.Errorf("hooks = %d, want 1", len(m.Hooks()))
	}

	infos := Infos()
	if len(infos) != 1 || infos[0].State != StateLoaded {
		t.Errorf("infos = %+v, want one Loaded entry", infos)
	}
	if infos[0].ID == "" {
		t.Error("loaded mod has no ID")
	}
}

func TestLoadCallbackCanQueryEarlierMods(t *testing.T) {
	defer Reset()

	depIface := geode.NewInterface()
	depIface.ExportFunction("dep/version", func() string { return "2.0.0" })
	if err := Register(Descriptor{Slug: "dep-mod", Name: "Dep", Interface: depIface}); err != nil {
		t.Fatal(err)
	}

	// The dependent resolves its dependency's export from its load
	// callback, which runs inside LoadAll.
	var got string
	useIface := geode.NewInterface()
	useIface.ScheduleOnLoad(func(m *geode.Mod) {
		dep := Find("dep-mod")
		if dep == nil {
			t.Error("dependency not visible from load callback")
			return
		}
		if fn, ok := dep.LookupExport("dep/version"); ok {
			got = fn.(func() string)()
		}
	})
	if err := Register(Descriptor{Slug: "uses-dep", Name: "User", Interface: useIface}); err != nil {
		t.Fatal(err)
	}

	opts := Options{
		Backend:    detour.NewRecorder(),
		ConfigPath: filepath.Join(t.TempDir(), "mods.json"),
	}
	done := make(chan error, 1)
	go func() {
		done <- LoadAll(opts)
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("LoadAll did not return; a load callback blocked on the loader")
	}

	if got != "2.0.0" {
		t.Fatalf("dependency export returned %q, want 2.0.0", got)
	}
}

func TestLoadCallbackCanRegisterCompanion(t *testing.T) {
	defer Reset()

	iface := geode.NewInterface()
	iface.ScheduleOnLoad(func(m *geode.Mod) {
		if err := Register(Descriptor{
			Slug: "companion-mod", Name: "Companion", Interface: geode.NewInterface(),
		}); err != nil {
			t.Errorf("register from load callback: %v", err)
		}
	})
	if err := Register(Descriptor{Slug: "parent-mod", Name: "Parent", Interface: iface}); err != nil {
		t.Fatal(err)
	}

	opts := Options{
		Backend:    detour.NewRecorder(),
		ConfigPath: filepath.Join(t.TempDir(), "mods.json"),
	}
	if err := LoadAll(opts); err != nil {
		t.Fatal(err)
	}

	// The companion joins the registry mid-load and loads on the next pass.
	if Find("companion-mod") != nil {
		t.Error("companion loaded in the same pass it was registered")
	}
	if err := LoadAll(opts); err != nil {
		t.Fatal(err)
	}
	if Find("companion-mod") == nil {
		t.Error("companion not loaded on the following pass")
	}
}

func TestLoadAllRequiresBackend(t *testing.T) {
	defer Reset()

	if err := LoadAll(Options{}); err == nil {
		t.Error("LoadAll accepted nil backend")
	}
}

func TestDisabledModIsSkipped(t *testing.T) {
	defer Reset()

	cfg := filepath.Join(t.TempDir(), "mods.json")
	doc := `{"auto_enable_new":true,"mods":{"disabled-mod":{"enabled":false}}}`
	if err := os.WriteFile(cfg, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Register(Descriptor{
		Slug: "disabled-mod", Name: "Disabled", Interface: geode.NewInterface(),
	}); err != nil {
		t.Fatal(err)
	}

	if err := LoadAll(Options{Backend: detour.NewRecorder(), ConfigPath: cfg}); err != nil {
		t.Fatal(err)
	}

	if Find("disabled-mod") != nil {
		t.Error("disabled mod was loaded")
	}
	if infos := Infos(); infos[0].State != StateDisabled {
		t.Errorf("state = %s, want Disabled", infos[0].State)
	}
}

func TestAutoEnableNewOff(t *testing.T) {
	defer Reset()

	cfg := filepath.Join(t.TempDir(), "mods.json")
	doc := `{"auto_enable_new":false,"mods":{"opted-in":{"enabled":true}}}`
	if err := os.WriteFile(cfg, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Register(Descriptor{Slug: "opted-in", Name: "In", Interface: geode.NewInterface()}); err != nil {
		t.Fatal(err)
	}
	if err := Register(Descriptor{Slug: "not-listed", Name: "Out", Interface: geode.NewInterface()}); err != nil {
		t.Fatal(err)
	}

	if err := LoadAll(Options{Backend: detour.NewRecorder(), ConfigPath: cfg}); err != nil {
		t.Fatal(err)
	}

	if Find("opted-in") == nil {
		t.Error("explicitly enabled mod not loaded")
	}
	if Find("not-listed") != nil {
		t.Error("unlisted mod loaded despite auto_enable_new=false")
	}
}

func TestSetEnabledPersists(t *testing.T) {
	defer Reset()

	cfg := filepath.Join(t.TempDir(), "mods.json")
	if err := Register(Descriptor{Slug: "toggle-mod", Name: "T", Interface: geode.NewInterface()}); err != nil {
		t.Fatal(err)
	}
	if err := LoadAll(Options{Backend: detour.NewRecorder(), ConfigPath: cfg}); err != nil {
		t.Fatal(err)
	}

	if err := SetEnabled("toggle-mod", false); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := `"enabled":false`
	if !strings.Contains(string(data), want) {
		t.Errorf("config %s does not contain %s", data, want)
	}
}

// ── unload ────────────────────────────────────────────────────

func TestUnloadRemovesHooksAndFreesEntry(t *testing.T) {
	defer Reset()

	iface := geode.NewInterface()
	iface.AddHook(0x2000, func(self uintptr) bool { return true }, geode.ConvDefault)

	if err := Register(Descriptor{Slug: "unload-test", Name: "U", Interface: iface}); err != nil {
		t.Fatal(err)
	}

	backend := detour.NewRecorder()
	st, err := store.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	if err := LoadAll(Options{
		Backend:    backend,
		Store:      st,
		ConfigPath: filepath.Join(t.TempDir(), "mods.json"),
	}); err != nil {
		t.Fatal(err)
	}

	if err := Unload("unload-test"); err != nil {
		t.Fatal(err)
	}
	if backend.Count() != 0 {
		t.Errorf("backend.Count = %d after unload, want 0", backend.Count())
	}
	if Find("unload-test") != nil {
		t.Error("Find returned a mod after unload")
	}
	if err := Unload("unload-test"); err == nil {
		t.Error("second unload succeeded")
	}
	if err := Unload("never-registered"); err == nil {
		t.Error("unload of unknown slug succeeded")
	}
}

func TestUnloadAllUnloadsEverything(t *testing.T) {
	defer Reset()

	for _, slug := range []string{"all-a", "all-b"} {
		if err := Register(Descriptor{Slug: slug, Name: slug, Interface: geode.NewInterface()}); err != nil {
			t.Fatal(err)
		}
	}

	if err := LoadAll(Options{
		Backend:    detour.NewRecorder(),
		ConfigPath: filepath.Join(t.TempDir(), "mods.json"),
	}); err != nil {
		t.Fatal(err)
	}

	UnloadAll()

	for _, info := range Infos() {
		if info.State != StateUnloaded {
			t.Errorf("mod %s state = %s after UnloadAll, want Unloaded", info.Slug, info.State)
		}
	}
}
