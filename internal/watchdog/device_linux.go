//go:build linux

package watchdog

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Device drives a Linux watchdog character device (/dev/watchdog). The
// kernel interface exposes a single reset timeout; the delay and event
// parameters of the port contract have no kernel equivalent and are
// accepted but unused.
type Device struct {
	path string

	mu sync.Mutex
	fd int
}

// NewDevice returns an unopened device for path. The device node is only
// opened on Start, because opening it already arms many drivers.
func NewDevice(path string) *Device {
	return &Device{path: path, fd: -1}
}

func (d *Device) Start(p Params) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd >= 0 {
		return ErrRunning
	}
	fd, err := unix.Open(d.path, unix.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", d.path, err)
	}
	secs := int(p.Reset.Seconds())
	if secs < 1 {
		secs = 1
	}
	if err := unix.IoctlSetPointerInt(fd, unix.WDIOC_SETTIMEOUT, secs); err != nil {
		unix.Close(fd)
		return fmt.Errorf("set timeout on %s: %w", d.path, err)
	}
	d.fd = fd
	return nil
}

func (d *Device) Trigger() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd < 0 {
		return ErrNotRunning
	}
	if err := unix.IoctlWatchdogKeepalive(d.fd); err != nil {
		return fmt.Errorf("keepalive on %s: %w", d.path, err)
	}
	return nil
}

// Stop performs the magic-close handshake so drivers built with
// CONFIG_WATCHDOG_NOWAYOUT disabled disarm cleanly.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd < 0 {
		return ErrNotRunning
	}
	if _, err := unix.Write(d.fd, []byte{'V'}); err != nil {
		unix.Close(d.fd)
		d.fd = -1
		return fmt.Errorf("magic close on %s: %w", d.path, err)
	}
	err := unix.Close(d.fd)
	d.fd = -1
	if err != nil {
		return fmt.Errorf("close %s: %w", d.path, err)
	}
	return nil
}

func (d *Device) Capability(key CapKey) (uint32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd < 0 {
		// Capability queries need an open descriptor; open read-less
		// is not possible for watchdog nodes, so report only static
		// facts while stopped.
		if key == CapUnitMinimum {
			return 1000, true
		}
		return 0, false
	}
	switch key {
	case CapSupportFlags:
		info, err := unix.IoctlGetWatchdogInfo(d.fd)
		if err != nil {
			return 0, false
		}
		return info.Options, true
	case CapUnitMinimum, CapResetMinimum:
		// Kernel watchdog timeouts are in whole seconds.
		return 1000, true
	case CapResetMaximum:
		secs, err := unix.IoctlGetInt(d.fd, unix.WDIOC_GETTIMEOUT)
		if err != nil {
			return 0, false
		}
		return uint32(secs) * 1000, true
	default:
		return 0, false
	}
}
