package batch

import (
	"fmt"

	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/renderer/metadata"
)

// Renderer draws every batch of a table with a single multi-draw call.
type Renderer struct {
	table *Table
}

func NewRenderer(table *Table) *Renderer {
	return &Renderer{table: table}
}

// Submission describes the multi-draw Render issues.
func (r *Renderer) Submission() *metadata.MultiDrawSubmission {
	return &metadata.MultiDrawSubmission{
		Layout:    r.table.layout,
		Commands:  r.table.commands.Handle(),
		DrawCount: uint32(r.table.Len()),
		Stride:    metadata.DRAW_INDEXED_INDIRECT_COMMAND_SIZE,
	}
}

// Render submits one indexed, instanced draw per batch in one call. None of
// the table's buffers may be mapped.
func (r *Renderer) Render() error {
	if r.table.isMapped() {
		return fmt.Errorf("%w: render while a batch buffer is mapped", core.ErrMapUnmapMisuse)
	}
	submission := r.Submission()
	if err := r.table.backend.MultiDrawIndexedIndirect(submission); err != nil {
		return err
	}
	core.MetricsSubmission(submission.DrawCount, r.table.Instances())
	return nil
}
