// Package example is a mod that exercises the deferred-registration
// protocol end to end: everything here is scheduled from init(), long
// before the loader has constructed the mod's context.
package example

import (
	"fmt"

	"github.com/Fleeym/geode/internal/loader"
	"github.com/Fleeym/geode/internal/updater"
	"github.com/Fleeym/geode/pkg/geode"
)

// Target addresses relative to the game binary's base, resolved by the
// address layer before the loader runs.
const (
	addrMenuLayerInit    uintptr = 0x1907b0
	addrSchedulerUpdate  uintptr = 0x243a60
	addrFormatDialogText uintptr = 0x2a9f00
)

// Greeter is exported as a bound-method API so other mods can call it.
type Greeter struct {
	prefix string
}

// Greet returns a greeting for name.
func (g *Greeter) Greet(name string) string {
	return g.prefix + name
}

// Version is exported as a free-function API.
func Version() string {
	return "1.2.0"
}

func onMenuLayerInit(self uintptr) bool {
	geode.CurrentMod().Logger().Debug("MenuLayer::init detour fired (self=%#x)", self)
	return true
}

func onSchedulerUpdate(self uintptr, dt float32) {
	// Hot path: nothing to do yet.
}

func onFormatDialogText(format uintptr, args ...uintptr) uintptr {
	return format
}

func onLoad(m *geode.Mod) {
	launches := m.SavedValue("launch_count").Int() + 1
	if err := m.SetSavedValue("launch_count", launches); err != nil {
		m.Logger().Warning("Could not update launch count: %v", err)
	}
	m.Logger().Info("Example mod loaded (launch #%d, %d hooks installed)",
		launches, len(m.Hooks()))
}

func onDownloadProgress(ev geode.Event[updater.ResourceDownloadEvent]) {
	m := geode.CurrentMod()
	if m == nil {
		return
	}
	switch ev.Payload.Kind {
	case updater.UpdateProgress:
		m.Logger().Debug("Downloading resources: %d%%", ev.Payload.Percent)
	case updater.UpdateFinished:
		m.Logger().Info("Resources downloaded")
	case updater.UpdateFailed:
		m.Logger().Error("Resource download failed: %s", ev.Payload.Reason)
	}
}

func init() {
	iface := geode.Get()

	iface.LogInfo("Example mod entering static init", geode.SeverityDebug)

	if _, err := iface.AddHookNamed("MenuLayer::init", addrMenuLayerInit, onMenuLayerInit, geode.ConvMember); err != nil {
		panic(fmt.Sprintf("example: schedule MenuLayer::init hook: %v", err))
	}
	if _, err := iface.AddHookNamed("CCScheduler::update", addrSchedulerUpdate, onSchedulerUpdate, geode.ConvMember); err != nil {
		panic(fmt.Sprintf("example: schedule CCScheduler::update hook: %v", err))
	}
	// Unnamed hook: shows up in listings by address only.
	if _, err := iface.AddHook(addrFormatDialogText, onFormatDialogText, geode.ConvVariadic); err != nil {
		panic(fmt.Sprintf("example: schedule dialog text hook: %v", err))
	}

	iface.ExportFunction("example/version", Version)
	iface.ExportMethod("example/greet", &Greeter{prefix: "Hello, "}, (*Greeter).Greet)

	geode.RegisterObserver[updater.ResourceDownloadEvent](updater.ProgressSelector, onDownloadProgress)

	iface.ScheduleOnLoad(onLoad)

	if err := loader.Register(loader.Descriptor{
		Slug:        "example",
		Name:        "Example Mod",
		Version:     Version(),
		Developer:   "Geode Team",
		Description: "Demonstrates deferred hooks, exports, logs and load callbacks",
	}); err != nil {
		panic(fmt.Sprintf("example: register: %v", err))
	}
}
