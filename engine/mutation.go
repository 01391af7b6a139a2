package engine

import (
	"fmt"

	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/renderer/batch"
	"github.com/spaghettifunk/multibatch/engine/renderer/buffer"
)

type MutationKind uint8

const (
	MutationPush MutationKind = iota
	MutationReset
	MutationResetAll
	MutationOverwrite
)

func (k MutationKind) String() string {
	switch k {
	case MutationPush:
		return "push"
	case MutationReset:
		return "reset"
	case MutationResetAll:
		return "reset-all"
	case MutationOverwrite:
		return "overwrite"
	}
	return "unknown"
}

// Mutation is a change to the batch table requested from any goroutine.
// Batches are addressed by shape name so a mutation survives a rebuild.
type Mutation struct {
	Kind    MutationKind
	Shape   string
	Start   uint32
	Records [][]buffer.Value
}

func PushInstance(shape string, values ...buffer.Value) Mutation {
	return Mutation{Kind: MutationPush, Shape: shape, Records: [][]buffer.Value{values}}
}

func ResetBatch(shape string) Mutation {
	return Mutation{Kind: MutationReset, Shape: shape}
}

func ResetAll() Mutation {
	return Mutation{Kind: MutationResetAll}
}

func OverwriteRange(shape string, start uint32, records ...[]buffer.Value) Mutation {
	return Mutation{Kind: MutationOverwrite, Shape: shape, Start: start, Records: records}
}

// apply runs m against table. Only the frame goroutine calls it.
func (m Mutation) apply(registry *batch.Registry, table *batch.Table) error {
	if m.Kind == MutationResetAll {
		return table.ResetAll()
	}
	i, err := batchOf(registry, table, m.Shape)
	if err != nil {
		return fmt.Errorf("%s: %w", m.Kind, err)
	}
	switch m.Kind {
	case MutationPush:
		if len(m.Records) != 1 {
			return fmt.Errorf("%w: push carries %d records", core.ErrFieldMismatch, len(m.Records))
		}
		return table.PushInstance(i, m.Records[0]...)
	case MutationReset:
		return table.ResetBatch(i)
	case MutationOverwrite:
		return table.OverwriteRange(i, m.Start, m.Records...)
	}
	return fmt.Errorf("%w: mutation kind %d", core.ErrUnknown, m.Kind)
}

// batchOf returns the index of the batch drawing the named shape.
func batchOf(registry *batch.Registry, table *batch.Table, name string) (int, error) {
	shape, ok := registry.ShapeByName(name)
	if !ok {
		return 0, fmt.Errorf("%w: unknown shape %q", core.ErrOutOfRange, name)
	}
	for i, b := range table.Batches() {
		if b.Shape.Index == shape.Index {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: shape %q has no batch", core.ErrOutOfRange, name)
}
