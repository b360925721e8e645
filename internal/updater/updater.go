// Package updater relays resource-download progress from the fetch
// subsystem onto the event bus. The network side lives elsewhere; this is
// its boundary: a sink fed (downloaded, total) byte counts that
// republishes throttled, typed progress events for whoever subscribed —
// typically a loading screen.
package updater

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/zoobzio/clockz"

	"github.com/Fleeym/geode/internal/eventcenter"
	"github.com/Fleeym/geode/internal/shared"
)

// ProgressSelector is the bus selector resource-download events go out on.
const ProgressSelector = "resource-download-progress"

// Kind describes what a ResourceDownloadEvent reports.
type Kind int

const (
	// UpdateProgress carries a percentage.
	UpdateProgress Kind = iota
	// UpdateFinished means all resources arrived.
	UpdateFinished
	// UpdateFailed carries the reason the download stopped.
	UpdateFailed
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case UpdateProgress:
		return "Progress"
	case UpdateFinished:
		return "Finished"
	case UpdateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ResourceDownloadEvent is the payload published on ProgressSelector.
type ResourceDownloadEvent struct {
	Kind       Kind
	Percent    int
	Downloaded uint64
	Total      uint64
	Reason     string
}

// Option configures a Relay.
type Option func(*Relay)

// WithClock injects a clock. Default is clockz.RealClock; tests use
// clockz.NewFakeClock.
func WithClock(c clockz.Clock) Option {
	return func(r *Relay) { r.clock = c }
}

// WithInterval sets the minimum spacing between progress events.
func WithInterval(d time.Duration) Option {
	return func(r *Relay) { r.interval = d }
}

// Relay republishes fetch progress onto the bus, at most one progress
// event per interval. Terminal events always go out. A Relay handles one
// download; it is fed from the fetcher's own goroutine and takes no locks.
type Relay struct {
	clock    clockz.Clock
	interval time.Duration

	total       uint64
	lastEmit    time.Time
	lastPercent int
	emitted     bool
	done        bool
}

// NewRelay returns a Relay for a download of total bytes. A zero total
// reports 0% until Finish.
func NewRelay(total uint64, opts ...Option) *Relay {
	r := &Relay{
		clock:       clockz.RealClock,
		interval:    100 * time.Millisecond,
		total:       total,
		lastPercent: -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Progress reports downloaded bytes so far. Re-publication is throttled:
// an event goes out when the percentage changed and at least one interval
// passed since the last one.
func (r *Relay) Progress(downloaded uint64) {
	if r.done {
		return
	}

	percent := 0
	if r.total > 0 {
		percent = int(downloaded * 100 / r.total)
		if percent > 100 {
			percent = 100
		}
	}

	now := r.clock.Now()
	if r.emitted {
		if percent == r.lastPercent {
			return
		}
		if now.Sub(r.lastEmit) < r.interval {
			return
		}
	}
	r.emitted = true
	r.lastEmit = now
	r.lastPercent = percent

	shared.LogDebug("Updater", "Downloading resources: %d%% (%s of %s)",
		percent, humanize.Bytes(downloaded), humanize.Bytes(r.total))

	eventcenter.Post(ProgressSelector, ResourceDownloadEvent{
		Kind:       UpdateProgress,
		Percent:    percent,
		Downloaded: downloaded,
		Total:      r.total,
	})
}

// Finish publishes the terminal success event.
func (r *Relay) Finish() {
	if r.done {
		return
	}
	r.done = true

	shared.LogInfo("Updater", "Resources downloaded (%s)", humanize.Bytes(r.total))
	eventcenter.Post(ProgressSelector, ResourceDownloadEvent{
		Kind:       UpdateFinished,
		Percent:    100,
		Downloaded: r.total,
		Total:      r.total,
	})
}

// Fail publishes the terminal failure event with its reason.
func (r *Relay) Fail(reason string) {
	if r.done {
		return
	}
	r.done = true

	shared.LogError("Updater", "Resource download failed: %s", reason)
	eventcenter.Post(ProgressSelector, ResourceDownloadEvent{
		Kind:   UpdateFailed,
		Reason: reason,
	})
}
