package wgpu

import (
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendercore/driver"
)

// Texture is a hal texture.
type Texture struct {
	dev    *Device
	native hal.Texture
	desc   driver.ResourceDesc
}

// Desc implements driver.Resource.
func (t *Texture) Desc() *driver.ResourceDesc { return &t.desc }

// HAL returns the hal texture.
func (t *Texture) HAL() hal.Texture { return t.native }

// Destroy implements driver.Resource.
func (t *Texture) Destroy() { t.dev.hal.DestroyTexture(t.native) }

// Buffer is a hal buffer.
type Buffer struct {
	dev    *Device
	native hal.Buffer
	desc   driver.ResourceDesc
}

// Desc implements driver.Resource.
func (b *Buffer) Desc() *driver.ResourceDesc { return &b.desc }

// HAL returns the hal buffer.
func (b *Buffer) HAL() hal.Buffer { return b.native }

// Destroy implements driver.Resource.
func (b *Buffer) Destroy() { b.dev.hal.DestroyBuffer(b.native) }

// WrapTexture adopts a texture created outside the adapter, such as a
// surface image. Destroying the result destroys the hal texture.
func (d *Device) WrapTexture(tex hal.Texture, desc driver.ResourceDesc) *Texture {
	return &Texture{dev: d, native: tex, desc: desc}
}
