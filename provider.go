package rendercore

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendercore/driver/wgpu"
)

// halProvider is implemented by hosts that share their hal device, such as
// the gogpu application framework.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// NewEnvFromProvider creates an environment on the GPU device of a host
// application. The provider must expose HalDevice() and HalQueue()
// returning a gogpu/wgpu hal.Device and hal.Queue. The host keeps ownership
// of the hal device; Close only releases the environment's wrapper of it.
func NewEnvFromProvider(provider gpucontext.DeviceProvider, opts ...EnvOption) (*Env, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNotHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, ErrNotHAL
	}
	q, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, ErrNotHAL
	}
	e, err := NewEnv(wgpu.New(device, q), opts...)
	if err != nil {
		return nil, err
	}
	e.ownsDevice = true
	return e, nil
}
