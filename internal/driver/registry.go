package driver

import (
	"errors"
	"sync"
)

// Sentinel errors for Registry operations.
var (
	ErrNotAllowed      = errors.New("driver: platform is not in the allow-list")
	ErrAlreadyReserved = errors.New("driver: platform is already reserved")
	ErrNotReserved     = errors.New("driver: platform was not reserved")
	ErrUnsupported     = errors.New("driver: platform has no registered driver")
)

// Registry tracks reserved and registered platform Drivers (component D). A platform is "reserved" between the
// moment the bootstrap path decides to initialize it and the moment its Driver finishes connecting and calls
// Register; the Core treats "no reservations outstanding" as the readiness signal and fires the setup callback
// exactly once when the last reservation resolves.
type Registry struct {
	mu              sync.Mutex
	drivers         map[string]Driver
	reserved        map[string]bool
	allowListActive bool
	allowList       map[string]bool
	onReady         func()
	fired           bool
}

// NewRegistry returns an empty Registry. When allowList is non-empty, only those platform ids may ever be
// registered; Register for any other platform fails with ErrNotAllowed.
func NewRegistry(allowList []string) *Registry {
	r := &Registry{
		drivers:   make(map[string]Driver),
		reserved:  make(map[string]bool),
		allowList: make(map[string]bool, len(allowList)),
	}
	for _, p := range allowList {
		r.allowList[p] = true
	}
	r.allowListActive = len(allowList) > 0
	return r
}

// SetSetupCallback registers the function fired exactly once, the moment the last outstanding reservation resolves
// (by Register or by Unreserve). If no reservations are outstanding when called, and at least one driver has ever
// been registered, it is safe to invoke fn eagerly from the caller's own bootstrap sequencing instead.
func (r *Registry) SetSetupCallback(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReady = fn
}

// Reserve marks platform as pending initialization.
func (r *Registry) Reserve(platform string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reserved[platform] {
		return ErrAlreadyReserved
	}
	r.reserved[platform] = true
	return nil
}

// Unreserve cancels a pending reservation without registering a driver, e.g. after an unrecoverable connect
// failure. It may unblock the setup callback if no reservations remain.
func (r *Registry) Unreserve(platform string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.reserved[platform] {
		return ErrNotReserved
	}
	delete(r.reserved, platform)
	r.maybeFireLocked()
	return nil
}

// Register installs d under its own Platform() id, clearing any outstanding reservation for that platform. It
// fails with ErrNotAllowed if an allow-list is active and the platform is not on it.
func (r *Registry) Register(d Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	platform := d.Platform()
	if r.allowListActive && !r.allowList[platform] {
		return ErrNotAllowed
	}

	r.drivers[platform] = d
	delete(r.reserved, platform)
	r.maybeFireLocked()
	return nil
}

// Remove unregisters platform's driver. When silent is false, callers may want to additionally notify
// administrators; the Registry itself performs no notification either way.
func (r *Registry) Remove(platform string, _ bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drivers, platform)
}

// Get returns the registered Driver for platform, if any.
func (r *Registry) Get(platform string) (Driver, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[platform]
	return d, ok
}

// All returns a snapshot of every currently registered Driver.
func (r *Registry) All() []Driver {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		out = append(out, d)
	}
	return out
}

// Ready reports whether every reservation has resolved, i.e. no platform is still pending initialization.
func (r *Registry) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reserved) == 0
}

func (r *Registry) maybeFireLocked() {
	if r.fired || len(r.reserved) != 0 || r.onReady == nil {
		return
	}
	r.fired = true
	fn := r.onReady
	go fn()
}
