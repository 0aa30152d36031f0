//go:build !linux

package watchdog

import "errors"

var errUnsupportedPlatform = errors.New("hardware watchdog is only supported on linux")

// Device is a stub on non-Linux platforms; every operation fails.
type Device struct {
	path string
}

func NewDevice(path string) *Device {
	return &Device{path: path}
}

func (d *Device) Start(Params) error { return errUnsupportedPlatform }

func (d *Device) Trigger() error { return errUnsupportedPlatform }

func (d *Device) Stop() error { return errUnsupportedPlatform }

func (d *Device) Capability(CapKey) (uint32, bool) { return 0, false }
