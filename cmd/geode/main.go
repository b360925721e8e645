// Command geode is a demonstration host: it wires a console log sink, an
// in-memory hook backend and a saved-value store, loads every registered
// mod, simulates a resource download, and prints the resulting hook table.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/Fleeym/geode/internal/detour"
	"github.com/Fleeym/geode/internal/loader"
	"github.com/Fleeym/geode/internal/shared"
	"github.com/Fleeym/geode/internal/store"
	"github.com/Fleeym/geode/internal/updater"
	"github.com/Fleeym/geode/pkg/geode"

	// Mods register themselves via init().
	_ "github.com/Fleeym/geode/mods/example"
)

// severityColors maps severities to ANSI codes for TTY output.
var severityColors = map[geode.Severity]string{
	geode.SeverityDebug:   "\033[90m",
	geode.SeverityInfo:    "\033[0m",
	geode.SeverityWarning: "\033[33m",
	geode.SeverityError:   "\033[31m",
}

func consoleSink() func(sev geode.Severity, tag, msg string) {
	colored := isatty.IsTerminal(os.Stderr.Fd())
	return func(sev geode.Severity, tag, msg string) {
		line := fmt.Sprintf("%s [%s] [%s] %s",
			time.Now().Format("15:04:05.000"), sev, tag, msg)
		if colored {
			fmt.Fprintf(os.Stderr, "%s%s\033[0m\n", severityColors[sev], line)
		} else {
			fmt.Fprintln(os.Stderr, line)
		}
	}
}

func main() {
	geode.SetLogCallback(consoleSink())

	st, err := store.Open("data/geode.db")
	if err != nil {
		shared.LogError("Geode", "Could not open saved-value store: %v", err)
		os.Exit(1)
	}
	defer st.Close()

	backend := detour.NewRecorder()
	if err := loader.LoadAll(loader.Options{Backend: backend, Store: st}); err != nil {
		shared.LogError("Geode", "Mod loading finished with errors: %v", err)
	}
	defer loader.UnloadAll()

	// Simulate the resource fetch subsystem reporting into the relay.
	const total = 24 << 20
	relay := updater.NewRelay(total, updater.WithInterval(0))
	for downloaded := uint64(0); downloaded < total; downloaded += total / 4 {
		relay.Progress(downloaded)
	}
	relay.Finish()

	for _, info := range loader.Infos() {
		fmt.Printf("%s v%s by %s — %s\n", info.Name, info.Version, info.Developer, info.State)
		mod := loader.Find(info.Slug)
		if mod == nil {
			continue
		}
		for _, h := range mod.Hooks() {
			name := h.DisplayName()
			if name == "" {
				name = fmt.Sprintf("base + %#x", h.Address())
			}
			fmt.Printf("  hook %-24s @ %#x  [%s, enabled=%v]\n",
				name, h.Address(), h.Convention(), h.Enabled())
		}
	}

	if mod := loader.Find("example"); mod != nil {
		if fn, ok := mod.LookupExport("example/greet"); ok {
			greet := fn.(func(string) string)
			fmt.Println(greet("world"))
		}
		fmt.Printf("saved data: %s\n", humanize.Comma(mod.SavedValue("launch_count").Int())+" launches")
	}
}
