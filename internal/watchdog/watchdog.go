// Package watchdog abstracts the hardware watchdog timer behind a small
// port interface with a single mutex-guarded handle, so exactly one owner
// per process drives the device.
package watchdog

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// EventType selects what the hardware does when the event timeout elapses
// before the reset timeout.
type EventType uint32

const (
	EventNone EventType = iota
	EventIRQ
	EventSCI
	EventPowerButton
	EventPin
)

func (e EventType) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventIRQ:
		return "irq"
	case EventSCI:
		return "sci"
	case EventPowerButton:
		return "power-button"
	case EventPin:
		return "pin"
	default:
		return fmt.Sprintf("event(%d)", uint32(e))
	}
}

// CapKey identifies a capability value queryable from the device.
type CapKey int

const (
	CapSupportFlags CapKey = iota
	CapUnitMinimum
	CapDelayMinimum
	CapDelayMaximum
	CapResetMinimum
	CapResetMaximum
)

func (k CapKey) String() string {
	switch k {
	case CapSupportFlags:
		return "support_flags"
	case CapUnitMinimum:
		return "time_unit_ms"
	case CapDelayMinimum:
		return "min_delay_time_ms"
	case CapDelayMaximum:
		return "max_delay_time_ms"
	case CapResetMinimum:
		return "min_reset_time_ms"
	case CapResetMaximum:
		return "max_reset_time_ms"
	default:
		return fmt.Sprintf("cap(%d)", int(k))
	}
}

// Params are the three timing parameters the device is armed with.
type Params struct {
	Delay time.Duration
	Event time.Duration
	Reset time.Duration
	Type  EventType
}

// DefaultParams mirror the HTTP service defaults: 10s initial delay,
// 5s event timeout, 1s reset timeout, no event.
func DefaultParams() Params {
	return Params{
		Delay: 10 * time.Second,
		Event: 5 * time.Second,
		Reset: time.Second,
		Type:  EventNone,
	}
}

// Port is the driver-facing contract. All calls are synchronous and fast;
// an error signals a hardware or driver failure.
type Port interface {
	Start(p Params) error
	Trigger() error
	Stop() error
	Capability(key CapKey) (uint32, bool)
}

var (
	ErrRunning    = errors.New("watchdog is already running")
	ErrNotRunning = errors.New("watchdog is not running")
)

// Handle serializes access to a Port and tracks the running flag and the
// armed parameters. It is the single control owner within a process.
type Handle struct {
	mu      sync.Mutex
	port    Port
	params  Params
	running bool
}

// NewHandle wraps port with the default parameters.
func NewHandle(port Port) *Handle {
	return &Handle{port: port, params: DefaultParams()}
}

// Start arms the device with p. Starting an already-running watchdog is
// rejected. Callers wanting partial overrides start from Params().
func (h *Handle) Start(p Params) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return ErrRunning
	}
	h.params = p
	if err := h.port.Start(h.params); err != nil {
		return fmt.Errorf("failed to start watchdog: %w", err)
	}
	h.running = true
	return nil
}

// Trigger feeds the device, resetting its internal countdown.
func (h *Handle) Trigger() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return ErrNotRunning
	}
	if err := h.port.Trigger(); err != nil {
		return fmt.Errorf("failed to trigger watchdog: %w", err)
	}
	return nil
}

// Stop disarms the device.
func (h *Handle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return ErrNotRunning
	}
	if err := h.port.Stop(); err != nil {
		return fmt.Errorf("failed to stop watchdog: %w", err)
	}
	h.running = false
	return nil
}

// Abandon marks the handle stopped without touching the device. Used when
// the supervisor enters reboot-pending and must leave the countdown armed.
func (h *Handle) Abandon() {
	h.mu.Lock()
	h.running = false
	h.mu.Unlock()
}

// Configure updates the stored parameters; only permitted while stopped.
func (h *Handle) Configure(p Params) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return ErrRunning
	}
	h.params = p
	return nil
}

// Running reports whether the device is currently armed via this handle.
func (h *Handle) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Params returns the currently stored timing parameters.
func (h *Handle) Params() Params {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.params
}

// Capability forwards a capability query to the underlying port.
func (h *Handle) Capability(key CapKey) (uint32, bool) {
	return h.port.Capability(key)
}
