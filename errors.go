package rendercore

import "errors"

// Environment errors.
var (
	// ErrNilDevice is returned when creating an environment without a device.
	ErrNilDevice = errors.New("rendercore: device is nil")

	// ErrNilProvider is returned when a nil DeviceProvider is passed.
	ErrNilProvider = errors.New("rendercore: nil DeviceProvider")

	// ErrNotHAL is returned when a DeviceProvider does not expose a
	// gogpu/wgpu hal device and queue.
	ErrNotHAL = errors.New("rendercore: provider does not expose a hal device")

	// ErrClosed is returned by operations on a closed environment.
	ErrClosed = errors.New("rendercore: environment is closed")
)
