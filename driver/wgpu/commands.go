package wgpu

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendercore/driver"
)

// Allocator owns the command buffers of the lists recorded into it.
type Allocator struct {
	dev  *Device
	kind driver.ListKind
	name string
	bufs []hal.CommandBuffer
}

// Reset implements driver.CommandAllocator. It frees every command buffer
// ended from lists recorded into the allocator.
func (a *Allocator) Reset() error {
	for _, b := range a.bufs {
		a.dev.hal.FreeCommandBuffer(b)
	}
	a.bufs = a.bufs[:0]
	return nil
}

// SetName implements driver.CommandAllocator.
func (a *Allocator) SetName(name string) { a.name = name }

// Destroy implements driver.CommandAllocator.
func (a *Allocator) Destroy() { _ = a.Reset() }

// Pending returns the number of command buffers the allocator holds.
func (a *Allocator) Pending() int { return len(a.bufs) }

// List records into a hal command encoder. Close ends the encoding and
// hands the command buffer to the list's allocator.
type List struct {
	dev       *Device
	kind      driver.ListKind
	name      string
	encoder   hal.CommandEncoder
	alloc     *Allocator
	buf       hal.CommandBuffer
	recording bool
}

// begin starts encoding into alloc.
func (l *List) begin(alloc *Allocator, name string) error {
	if err := l.encoder.BeginEncoding(name); err != nil {
		return fmt.Errorf("wgpu: begin encoding %q: %w", name, err)
	}
	l.alloc = alloc
	l.name = name
	l.buf = nil
	l.recording = true
	return nil
}

// Reset implements driver.CommandList.
func (l *List) Reset(alloc driver.CommandAllocator, name string) error {
	a, ok := alloc.(*Allocator)
	if !ok {
		return fmt.Errorf("wgpu: allocator %T does not belong to this driver", alloc)
	}
	if l.recording {
		l.encoder.DiscardEncoding()
		l.recording = false
	}
	return l.begin(a, name)
}

// ResourceBarrier implements driver.CommandList.
func (l *List) ResourceBarrier(barriers []driver.Barrier) {
	var (
		textures []hal.TextureBarrier
		buffers  []hal.BufferBarrier
	)
	for _, b := range barriers {
		switch r := b.Resource.(type) {
		case *Texture:
			textures = append(textures, hal.TextureBarrier{
				Texture: r.native,
				Usage: hal.TextureUsageTransition{
					OldUsage: textureStateUsage(b.Before),
					NewUsage: textureStateUsage(b.After),
				},
			})
		case *Buffer:
			buffers = append(buffers, hal.BufferBarrier{
				Buffer: r.native,
				Usage: hal.BufferUsageTransition{
					OldUsage: bufferStateUsage(b.Before),
					NewUsage: bufferStateUsage(b.After),
				},
			})
		default:
			panic(fmt.Sprintf("wgpu: barrier on foreign resource %T", b.Resource))
		}
	}
	if len(buffers) > 0 {
		l.encoder.TransitionBuffers(buffers)
	}
	if len(textures) > 0 {
		l.encoder.TransitionTextures(textures)
	}
}

// CopyBufferRegion implements driver.CommandList.
func (l *List) CopyBufferRegion(dst driver.Resource, dstOffset uint64, src driver.Resource, srcOffset, size uint64) {
	l.encoder.CopyBufferToBuffer(src.(*Buffer).native, dst.(*Buffer).native, []hal.BufferCopy{{
		SrcOffset: srcOffset,
		DstOffset: dstOffset,
		Size:      size,
	}})
}

// Close implements driver.CommandList.
func (l *List) Close() error {
	if !l.recording {
		return fmt.Errorf("wgpu: list %q is not recording", l.name)
	}
	buf, err := l.encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding %q: %w", l.name, err)
	}
	l.recording = false
	l.buf = buf
	l.alloc.bufs = append(l.alloc.bufs, buf)
	return nil
}

// SetName implements driver.CommandList.
func (l *List) SetName(name string) { l.name = name }

// Destroy implements driver.CommandList. The command buffer, if any, stays
// with the allocator.
func (l *List) Destroy() {
	if l.recording {
		l.encoder.DiscardEncoding()
		l.recording = false
	}
}

// CommandBuffer returns the buffer ended by the last Close, or nil.
func (l *List) CommandBuffer() hal.CommandBuffer { return l.buf }

// Encoder returns the hal encoder, for recording commands the driver seam
// does not cover.
func (l *List) Encoder() hal.CommandEncoder { return l.encoder }
