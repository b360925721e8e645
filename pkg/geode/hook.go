package geode

import (
	"github.com/Fleeym/geode/internal/detour"
)

// Convention identifies how arguments are marshaled between the hooked
// target and the detour.
type Convention = detour.Convention

const (
	// ConvDefault is the platform's default C calling convention.
	ConvDefault = detour.ConvDefault
	// ConvMember is the this-pointer-first member-function convention.
	ConvMember = detour.ConvMember
	// ConvVariadic is the convention for variadic targets.
	ConvVariadic = detour.ConvVariadic
)

// Hook is the runtime record of one installed detour. Hooks are created by
// their owning Mod's install routine and never outlive it.
type Hook struct {
	owner       *Mod
	handle      detour.Handle
	address     uintptr
	displayName string
	conv        Convention
	enabled     bool
}

// Address returns the hooked target address.
func (h *Hook) Address() uintptr { return h.address }

// DisplayName returns the name shown in the loader's hook listings.
// Empty when the caller did not supply one.
func (h *Hook) DisplayName() string { return h.displayName }

// Convention returns the calling-convention tag the hook was installed with.
func (h *Hook) Convention() Convention { return h.conv }

// Enabled reports whether the detour is currently active.
func (h *Hook) Enabled() bool {
	h.owner.mu.RLock()
	defer h.owner.mu.RUnlock()
	return h.enabled
}

// Owner returns the Mod this hook belongs to.
func (h *Hook) Owner() *Mod { return h.owner }

// Enable re-activates a disabled hook through the backend.
func (h *Hook) Enable() error {
	return h.setEnabled(true)
}

// Disable deactivates the hook without removing it.
func (h *Hook) Disable() error {
	return h.setEnabled(false)
}

func (h *Hook) setEnabled(enabled bool) error {
	h.owner.mu.Lock()
	defer h.owner.mu.Unlock()

	if h.enabled == enabled {
		return nil
	}
	if err := h.owner.backend.SetEnabled(h.handle, enabled); err != nil {
		return err
	}
	h.enabled = enabled
	return nil
}
