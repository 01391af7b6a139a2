package memory

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/renderer/metadata"
)

type hostBuffer struct {
	data   []byte
	mapped bool
	access metadata.MapAccess
}

// Submission is a multi-draw as seen by the backend at submit time: the bound
// layout and the commands decoded from the indirect buffer.
type Submission struct {
	Layout   metadata.VertexLayout
	Commands []metadata.DrawIndexedIndirectCommand
}

// Instances returns the total number of instances drawn by the submission.
func (s Submission) Instances() uint64 {
	var n uint64
	for _, c := range s.Commands {
		n += uint64(c.InstanceCount)
	}
	return n
}

/**
 * @brief A renderer backend keeping every buffer in host memory. Draws are
 * validated against the bound layout and recorded instead of executed.
 */
type Backend struct {
	// Strict turns misuse of the mapping protocol into a panic instead of an
	// error, the equivalent of an assertion.
	Strict bool

	buffers     map[uuid.UUID]*hostBuffer
	layout      *metadata.VertexLayout
	submissions []Submission
}

func New() *Backend {
	return &Backend{
		buffers: make(map[uuid.UUID]*hostBuffer),
	}
}

func (b *Backend) misuse(format string, args ...any) error {
	err := fmt.Errorf("%w: "+format, append([]any{core.ErrMapUnmapMisuse}, args...)...)
	if b.Strict {
		panic(err)
	}
	return err
}

func (b *Backend) lookup(buffer *metadata.RenderBuffer) (*hostBuffer, error) {
	if buffer == nil {
		return nil, fmt.Errorf("%w: nil buffer", core.ErrOutOfRange)
	}
	hb, ok := b.buffers[buffer.ID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown buffer %s", core.ErrOutOfRange, buffer.ID)
	}
	return hb, nil
}

func (b *Backend) RenderBufferCreate(bufferType metadata.RenderBufferType, usage metadata.BufferUsage, totalSize uint64) (*metadata.RenderBuffer, error) {
	if totalSize == 0 {
		return nil, fmt.Errorf("%w: zero sized %s buffer", core.ErrInvalidCapacity, bufferType)
	}
	buffer := metadata.NewRenderBuffer(bufferType, usage, totalSize)
	hb := &hostBuffer{data: make([]byte, totalSize)}
	buffer.InternalData = hb
	b.buffers[buffer.ID] = hb
	core.LogDebug("created %s buffer %s (%d bytes)", bufferType, buffer.ID, totalSize)
	return buffer, nil
}

func (b *Backend) RenderBufferDestroy(buffer *metadata.RenderBuffer) {
	if buffer == nil {
		return
	}
	delete(b.buffers, buffer.ID)
	buffer.InternalData = nil
}

func (b *Backend) RenderBufferMapMemory(buffer *metadata.RenderBuffer, offset, size uint64, access metadata.MapAccess) ([]byte, error) {
	hb, err := b.lookup(buffer)
	if err != nil {
		return nil, err
	}
	if hb.mapped {
		return nil, b.misuse("buffer %s already mapped", buffer.ID)
	}
	if offset+size > uint64(len(hb.data)) || offset+size < offset {
		return nil, fmt.Errorf("%w: map [%d, %d) of %d bytes", core.ErrOutOfRange, offset, offset+size, len(hb.data))
	}
	hb.mapped = true
	hb.access = access
	return hb.data[offset : offset+size : offset+size], nil
}

func (b *Backend) RenderBufferUnmapMemory(buffer *metadata.RenderBuffer) error {
	hb, err := b.lookup(buffer)
	if err != nil {
		return err
	}
	if !hb.mapped {
		return b.misuse("buffer %s not mapped", buffer.ID)
	}
	hb.mapped = false
	return nil
}

func (b *Backend) VertexLayoutBind(layout *metadata.VertexLayout) error {
	if layout == nil {
		return fmt.Errorf("%w: nil layout", core.ErrInvalidLayout)
	}
	check := func(buffer *metadata.RenderBuffer) error {
		hb, err := b.lookup(buffer)
		if err != nil {
			return err
		}
		if hb.mapped {
			return b.misuse("buffer %s bound while mapped", buffer.ID)
		}
		return nil
	}
	for _, a := range layout.Attributes {
		if err := check(a.Buffer); err != nil {
			return err
		}
	}
	if err := check(layout.IndexBuffer); err != nil {
		return err
	}
	b.layout = layout
	return nil
}

func (b *Backend) MultiDrawIndexedIndirect(submission *metadata.MultiDrawSubmission) error {
	if submission.Layout != b.layout {
		if err := b.VertexLayoutBind(submission.Layout); err != nil {
			return err
		}
	}
	commands, err := b.Resolve(submission)
	if err != nil {
		return err
	}
	layout := *b.layout
	layout.Attributes = append([]metadata.VertexAttribute(nil), b.layout.Attributes...)
	b.submissions = append(b.submissions, Submission{Layout: layout, Commands: commands})
	return nil
}

// Resolve decodes the commands a submission would execute and checks every
// fetch they imply stays inside the bound buffers.
func (b *Backend) Resolve(submission *metadata.MultiDrawSubmission) ([]metadata.DrawIndexedIndirectCommand, error) {
	hb, err := b.lookup(submission.Commands)
	if err != nil {
		return nil, err
	}
	if hb.mapped {
		return nil, b.misuse("indirect buffer %s read while mapped", submission.Commands.ID)
	}
	if submission.Stride < metadata.DRAW_INDEXED_INDIRECT_COMMAND_SIZE {
		return nil, fmt.Errorf("%w: command stride %d", core.ErrInvalidLayout, submission.Stride)
	}
	if submission.DrawCount == 0 {
		return nil, nil
	}
	end := submission.Offset + uint64(submission.DrawCount-1)*uint64(submission.Stride) + uint64(metadata.DRAW_INDEXED_INDIRECT_COMMAND_SIZE)
	if end > uint64(len(hb.data)) {
		return nil, fmt.Errorf("%w: %d commands overrun indirect buffer of %d bytes", core.ErrOutOfRange, submission.DrawCount, len(hb.data))
	}

	commands := make([]metadata.DrawIndexedIndirectCommand, submission.DrawCount)
	for i := range commands {
		at := submission.Offset + uint64(i)*uint64(submission.Stride)
		commands[i].Decode(hb.data[at:])
		if err := b.validate(submission.Layout, commands[i]); err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
	}
	return commands, nil
}

func (b *Backend) validate(layout *metadata.VertexLayout, cmd metadata.DrawIndexedIndirectCommand) error {
	if cmd.InstanceCount == 0 || cmd.Count == 0 {
		return nil
	}
	indices, err := b.lookup(layout.IndexBuffer)
	if err != nil {
		return err
	}
	indexSize := uint64(2)
	if layout.IndexType == metadata.INDEX_TYPE_UINT32 {
		indexSize = 4
	}
	if (uint64(cmd.FirstIndex)+uint64(cmd.Count))*indexSize > uint64(len(indices.data)) {
		return fmt.Errorf("%w: indices [%d, %d) outside index buffer", core.ErrOutOfRange, cmd.FirstIndex, cmd.FirstIndex+cmd.Count)
	}
	for _, a := range layout.Attributes {
		if a.Divisor == 0 {
			continue
		}
		hb, err := b.lookup(a.Buffer)
		if err != nil {
			return err
		}
		last := uint64(cmd.BaseInstance) + uint64(cmd.InstanceCount) - 1
		end := a.Offset + last*uint64(a.Stride) + uint64(a.Kind.Size()*a.Components)
		if end > uint64(len(hb.data)) {
			return fmt.Errorf("%w: slot %d reads past its buffer for instance %d", core.ErrOutOfRange, a.Slot, last)
		}
	}
	return nil
}

// Submissions returns every recorded multi-draw in submission order.
func (b *Backend) Submissions() []Submission {
	return b.submissions
}

// LastSubmission returns the most recent multi-draw, if any.
func (b *Backend) LastSubmission() (Submission, bool) {
	if len(b.submissions) == 0 {
		return Submission{}, false
	}
	return b.submissions[len(b.submissions)-1], true
}

// Reset forgets recorded submissions, typically once per frame.
func (b *Backend) Reset() {
	b.submissions = b.submissions[:0]
}

// BoundLayout is the layout of the last VertexLayoutBind.
func (b *Backend) BoundLayout() *metadata.VertexLayout {
	return b.layout
}

// Bytes returns a copy of the buffer contents.
func (b *Backend) Bytes(buffer *metadata.RenderBuffer) ([]byte, error) {
	hb, err := b.lookup(buffer)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), hb.data...), nil
}

// Live is the number of buffers not yet destroyed.
func (b *Backend) Live() int {
	return len(b.buffers)
}
