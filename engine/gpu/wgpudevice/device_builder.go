package wgpudevice

// DeviceBuilderOption is a functional option applied to a Device during construction via NewDevice.
type DeviceBuilderOption func(*Device)

// WithForceFallbackAdapter requests the software fallback adapter instead of a hardware GPU.
//
// Parameters:
//   - force: true to force the fallback adapter
//
// Returns:
//   - DeviceBuilderOption: a function that applies the adapter option to a Device
func WithForceFallbackAdapter(force bool) DeviceBuilderOption {
	return func(d *Device) {
		d.forceFallbackAdapter = force
	}
}

// WithVSync selects FIFO presentation, which waits for vertical blank. Without it the surface
// presents immediately.
//
// Parameters:
//   - vsync: true to wait for vertical blank
//
// Returns:
//   - DeviceBuilderOption: a function that applies the present mode to a Device
func WithVSync(vsync bool) DeviceBuilderOption {
	return func(d *Device) {
		d.vsync = vsync
	}
}
