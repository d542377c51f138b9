package gpu

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyData         = errors.New("buffer data is empty")
	ErrIncompatibleUsage = errors.New("buffer usage is not bindable")
	ErrBuilderFinalized  = errors.New("resource builder already finalized")
)

// Builder allocates GPU resources and records them in binding-slot order
// for a single bind group at group 0. The slot of a resource is its
// allocation order. A Builder is single-use: construct a fresh one for
// every rebuild.
type Builder struct {
	device    Device
	label     string
	entries   []BindGroupEntry
	owned     []Buffer
	finalized bool
}

func NewBuilder(device Device, label string) *Builder {
	return &Builder{
		device: device,
		label:  label,
	}
}

// Len returns the next binding slot.
func (b *Builder) Len() int {
	return len(b.entries)
}

// CreateBuffer allocates a buffer sized to data, enqueues the upload and
// appends it at the next slot. CopyDst is always added so later in-place
// writes are legal.
func (b *Builder) CreateBuffer(label string, data []byte, usage BufferUsage) (Buffer, error) {
	if b.finalized {
		return nil, ErrBuilderFinalized
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s:%s: %w", b.label, label, ErrEmptyData)
	}
	if err := checkBindableUsage(usage); err != nil {
		return nil, fmt.Errorf("%s:%s: %w", b.label, label, err)
	}

	buf, err := NewBufferInit(b.device, b.label+":"+label, data, usage)
	if err != nil {
		return nil, err
	}
	b.owned = append(b.owned, buf)
	b.append(BindGroupEntry{Buffer: buf})
	return buf, nil
}

// AttachBuffer appends an existing buffer at the next slot without
// uploading. The builder does not take ownership, so two builders can bind
// the same handle at different slots.
func (b *Builder) AttachBuffer(buf Buffer) error {
	if b.finalized {
		return ErrBuilderFinalized
	}
	if err := checkBindableUsage(buf.Usage()); err != nil {
		return fmt.Errorf("%s: %w", buf.Label(), err)
	}
	b.append(BindGroupEntry{Buffer: buf})
	return nil
}

func (b *Builder) AttachSampler(s Sampler) error {
	if b.finalized {
		return ErrBuilderFinalized
	}
	b.append(BindGroupEntry{Sampler: s})
	return nil
}

func (b *Builder) AttachTextureView(v TextureView) error {
	if b.finalized {
		return ErrBuilderFinalized
	}
	b.append(BindGroupEntry{TextureView: v})
	return nil
}

// Finalize builds the bind group against the pipeline's layout at group 0.
func (b *Builder) Finalize(pipeline Pipeline) (BindGroup, error) {
	if b.finalized {
		return nil, ErrBuilderFinalized
	}
	b.finalized = true

	layout, err := pipeline.BindGroupLayout(0)
	if err != nil {
		return nil, fmt.Errorf("%s: bind group layout: %w", b.label, err)
	}
	defer layout.Release()

	entries := make([]BindGroupEntry, len(b.entries))
	copy(entries, b.entries)
	bg, err := b.device.CreateBindGroup(BindGroupDescriptor{
		Label:   b.label + ":BindGroup",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: create bind group: %w", b.label, err)
	}
	return bg, nil
}

// Discard releases every buffer this builder created. Used when a build is
// aborted half way.
func (b *Builder) Discard() {
	for _, buf := range b.owned {
		buf.Release()
	}
	b.owned = nil
	b.entries = nil
	b.finalized = true
}

func (b *Builder) append(e BindGroupEntry) {
	e.Binding = uint32(len(b.entries))
	b.entries = append(b.entries, e)
}

// NewBufferInit creates a buffer sized to data (rounded up to 4 bytes) and
// enqueues the upload.
func NewBufferInit(device Device, label string, data []byte, usage BufferUsage) (Buffer, error) {
	size := uint64(len(data))
	if size%4 != 0 {
		size += 4 - size%4
	}
	buf, err := device.CreateBuffer(BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage | BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer %q: %w", label, err)
	}
	if uint64(len(data)) != size {
		padded := make([]byte, size)
		copy(padded, data)
		data = padded
	}
	if err := device.Queue().WriteBuffer(buf, 0, data); err != nil {
		buf.Release()
		return nil, fmt.Errorf("upload buffer %q: %w", label, err)
	}
	return buf, nil
}

// checkBindableUsage accepts usages that can appear in a bind group entry.
func checkBindableUsage(usage BufferUsage) error {
	if usage&(BufferUsageUniform|BufferUsageStorage) == 0 {
		return ErrIncompatibleUsage
	}
	if usage.Has(BufferUsageUniform) && usage.Has(BufferUsageStorage) {
		return ErrIncompatibleUsage
	}
	if usage&(BufferUsageMapRead|BufferUsageMapWrite) != 0 {
		return ErrIncompatibleUsage
	}
	return nil
}
