// internal/driver/virtual/device.go
package virtual

import "sync"

// Device is the simulated hardware behind a Printer: the power switch and
// the cash drawer. Tests and demo front ends own it and flip its state
// while a Printer is in use.
type Device struct {
	mu         sync.Mutex
	off        bool
	drawerOpen bool
}

// NewDevice returns a powered on device with the drawer closed.
func NewDevice() *Device {
	return &Device{}
}

// SetOff turns the device off or back on.
func (d *Device) SetOff(off bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.off = off
}

func (d *Device) IsOff() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.off
}

// SetDrawerOpen opens or closes the cash drawer.
func (d *Device) SetDrawerOpen(open bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drawerOpen = open
}

func (d *Device) DrawerOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drawerOpen
}
