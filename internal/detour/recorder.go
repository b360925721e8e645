package detour

import (
	"sync"
)

// Installed describes one live detour inside a Recorder.
type Installed struct {
	Handle      Handle
	Address     uintptr
	DisplayName string
	Conv        Convention
	Enabled     bool
}

// Recorder is an in-memory Backend. It performs no code patching; it
// records installs in order and enforces the one-hook-per-address
// invariant, which makes it suitable for tests and for hosts that only
// need the bookkeeping side of the protocol.
type Recorder struct {
	mu         sync.Mutex
	nextHandle Handle
	byAddr     map[uintptr]Handle
	byHandle   map[Handle]*Installed
	order      []Handle
	failAddrs  map[uintptr]error
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		byAddr:    make(map[uintptr]Handle),
		byHandle:  make(map[Handle]*Installed),
		failAddrs: make(map[uintptr]error),
	}
}

// FailAddress programs the Recorder to reject installs at address with err.
func (r *Recorder) FailAddress(address uintptr, err error) {
	r.mu.Lock()
	r.failAddrs[address] = err
	r.mu.Unlock()
}

// Install records a detour at address.
func (r *Recorder) Install(address uintptr, fn interface{}, conv Convention, displayName string) (Handle, error) {
	if fn == nil {
		return 0, ErrNilDetour
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err, ok := r.failAddrs[address]; ok {
		return 0, err
	}
	if _, exists := r.byAddr[address]; exists {
		return 0, ErrDuplicateHook
	}

	r.nextHandle++
	h := r.nextHandle
	r.byAddr[address] = h
	r.byHandle[h] = &Installed{
		Handle:      h,
		Address:     address,
		DisplayName: displayName,
		Conv:        conv,
		Enabled:     true,
	}
	r.order = append(r.order, h)
	return h, nil
}

// Remove drops a recorded detour.
func (r *Recorder) Remove(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byHandle[h]
	if !ok {
		return ErrNotInstalled
	}
	delete(r.byHandle, h)
	delete(r.byAddr, rec.Address)
	for i, oh := range r.order {
		if oh == h {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetEnabled toggles a recorded detour.
func (r *Recorder) SetEnabled(h Handle, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byHandle[h]
	if !ok {
		return ErrNotInstalled
	}
	rec.Enabled = enabled
	return nil
}

// InstallOrder returns copies of the recorded installs in install order.
func (r *Recorder) InstallOrder() []Installed {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Installed, 0, len(r.order))
	for _, h := range r.order {
		if rec, ok := r.byHandle[h]; ok {
			out = append(out, *rec)
		}
	}
	return out
}

// Count returns the number of live detours.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byHandle)
}
