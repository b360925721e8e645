// Package detour defines the boundary to the hook-install backend: the
// component that physically writes a detour into the target binary. The
// core never patches memory itself; it hands (address, detour, convention,
// display name) to a Backend and bookkeeps the result.
package detour

import "errors"

// Convention identifies how arguments are marshaled between the hooked
// target and the detour. It is carried as a tag on every install request
// so backends can pick the right wrapper for the target's ABI.
type Convention int

const (
	// ConvDefault is the platform's default C calling convention.
	ConvDefault Convention = iota
	// ConvMember is the this-pointer-first member-function convention.
	ConvMember
	// ConvVariadic is the convention for variadic targets.
	ConvVariadic
)

// String returns the convention name.
func (c Convention) String() string {
	switch c {
	case ConvDefault:
		return "Default"
	case ConvMember:
		return "Member"
	case ConvVariadic:
		return "Variadic"
	default:
		return "Unknown"
	}
}

// Handle identifies one installed detour inside a Backend.
type Handle uint64

// Backend-defined error kinds. The core forwards these, it does not
// produce them itself (except ErrNilDetour, rejected before dispatch).
var (
	// ErrUnhookableAddress means the target address cannot be patched.
	ErrUnhookableAddress = errors.New("address cannot be hooked")
	// ErrConventionMismatch means the detour does not fit the requested
	// calling convention.
	ErrConventionMismatch = errors.New("calling convention mismatch")
	// ErrDuplicateHook means the address already has an installed hook.
	ErrDuplicateHook = errors.New("address already hooked")
	// ErrNotInstalled means the handle does not refer to a live hook.
	ErrNotInstalled = errors.New("hook not installed")
	// ErrNilDetour means a nil detour function was supplied.
	ErrNilDetour = errors.New("nil detour function")
)

// Backend installs and removes detours. Implementations own trampoline
// generation and memory patching; this package only specifies the contract.
type Backend interface {
	// Install writes a detour at address. The detour is an opaque function
	// value; conv tells the backend how to wrap it. Returns a handle for
	// later removal or state changes.
	Install(address uintptr, fn interface{}, conv Convention, displayName string) (Handle, error)

	// Remove tears the detour down and frees its handle.
	Remove(h Handle) error

	// SetEnabled toggles the detour without removing it.
	SetEnabled(h Handle, enabled bool) error
}
