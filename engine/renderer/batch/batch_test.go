package batch

import (
	"math/rand"
	"testing"

	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/math"
	"github.com/spaghettifunk/multibatch/engine/renderer/buffer"
	"github.com/spaghettifunk/multibatch/engine/renderer/memory"
	"github.com/spaghettifunk/multibatch/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangle() ([]math.Vertex, []uint16) {
	return []math.Vertex{
		{Position: math.NewVec3(0, 1, 0), Normal: math.NewVec3(0, 0, 1)},
		{Position: math.NewVec3(-1, -1, 0), Normal: math.NewVec3(0, 0, 1)},
		{Position: math.NewVec3(1, -1, 0), Normal: math.NewVec3(0, 0, 1)},
	}, []uint16{0, 1, 2}
}

func quad() ([]math.Vertex, []uint16) {
	return []math.Vertex{
		{Position: math.NewVec3(-1, -1, 0), Texcoord: math.NewVec3(0, 0, 0)},
		{Position: math.NewVec3(1, -1, 0), Texcoord: math.NewVec3(1, 0, 0)},
		{Position: math.NewVec3(1, 1, 0), Texcoord: math.NewVec3(1, 1, 0)},
		{Position: math.NewVec3(-1, 1, 0), Texcoord: math.NewVec3(0, 1, 0)},
	}, []uint16{0, 1, 2, 2, 3, 0}
}

func newRegistry(t *testing.T, backend *memory.Backend) *Registry {
	t.Helper()
	r, err := NewRegistry(backend)
	require.NoError(t, err)
	v, i := triangle()
	_, err = r.AppendShape("triangle", v, i)
	require.NoError(t, err)
	v, i = quad()
	_, err = r.AppendShape("quad", v, i)
	require.NoError(t, err)
	return r
}

// colorTransform is the record used throughout: a vec3 color and a mat4 transform.
func colorTransform() []buffer.Field {
	return []buffer.Field{buffer.Vec3("color"), buffer.Mat4("transform")}
}

func newTable(t *testing.T, layout buffer.Layout, capacities ...uint32) (*Table, *memory.Backend) {
	t.Helper()
	backend := memory.New()
	registry := newRegistry(t, backend)
	specs := make([]BatchSpec, len(capacities))
	for i, c := range capacities {
		specs[i] = BatchSpec{Shape: i % 2, Capacity: c}
	}
	table, err := NewTable(backend, registry, colorTransform(), layout, specs)
	require.NoError(t, err)
	return table, backend
}

func instance(i int) (math.Vec3, math.Mat4) {
	return math.NewVec3(float32(i), 0.5, 1), math.NewMat4Translation(math.NewVec3(float32(i), float32(-i), 2))
}

func push(t *testing.T, table *Table, batch, i int) {
	t.Helper()
	color, transform := instance(i)
	require.NoError(t, table.PushInstance(batch, &color, &transform))
}

func TestRegistryBiasesIndices(t *testing.T) {
	r := newRegistry(t, memory.New())
	shapes := r.Shapes()
	require.Len(t, shapes, 2)

	assert.Equal(t, Shape{Index: 0, Name: "triangle", ElementCount: 3, ElementOffset: 0}, shapes[0])
	assert.Equal(t, Shape{Index: 1, Name: "quad", ElementCount: 6, ElementOffset: 3}, shapes[1])
	assert.Equal(t, uint32(7), r.VertexCount())
	assert.Equal(t, uint32(9), r.IndexCount())

	indices, err := r.Indices(shapes[1])
	require.NoError(t, err)
	assert.Equal(t, []uint16{3, 4, 5, 5, 6, 3}, indices)

	v, err := r.Vertex(6)
	require.NoError(t, err)
	quadVertices, _ := quad()
	assert.Equal(t, quadVertices[3], v)

	s, ok := r.ShapeByName("quad")
	assert.True(t, ok)
	assert.Equal(t, 1, s.Index)
}

func TestRegistryRejectsBadGeometry(t *testing.T) {
	r, err := NewRegistry(memory.New())
	require.NoError(t, err)

	v, _ := triangle()
	_, err = r.AppendShape("broken", v, []uint16{0, 1, 3})
	assert.ErrorIs(t, err, core.ErrOutOfRange)
	_, err = r.AppendShape("empty", nil, nil)
	assert.ErrorIs(t, err, core.ErrInvalidLayout)
	assert.Empty(t, r.Shapes())
	assert.Equal(t, uint32(0), r.VertexCount())
}

func TestRegistryIndexOverflow(t *testing.T) {
	r, err := NewRegistry(memory.New())
	require.NoError(t, err)

	big := make([]math.Vertex, MAX_INDEX+1)
	_, err = r.AppendShape("big", big, []uint16{0, 1, MAX_INDEX})
	require.NoError(t, err)

	v, i := triangle()
	_, err = r.AppendShape("triangle", v, i)
	assert.ErrorIs(t, err, core.ErrIndexOverflow)
	assert.Len(t, r.Shapes(), 1)
}

func TestRegistrySealedByTable(t *testing.T) {
	table, _ := newTable(t, buffer.LayoutPacked, 1, 1)
	assert.True(t, table.registry.Sealed())

	v, i := triangle()
	_, err := table.registry.AppendShape("late", v, i)
	assert.ErrorIs(t, err, core.ErrRegistrySealed)
}

func TestTwoShapeScenario(t *testing.T) {
	table, _ := newTable(t, buffer.LayoutPacked, 2, 3)

	batches := table.Batches()
	assert.Equal(t, uint32(0), batches[0].Offset)
	assert.Equal(t, uint32(2), batches[1].Offset)

	push(t, table, 0, 0)
	push(t, table, 0, 1)
	push(t, table, 1, 2)

	cmd, err := table.Command(0)
	require.NoError(t, err)
	assert.Equal(t, metadata.DrawIndexedIndirectCommand{Count: 3, InstanceCount: 2, FirstIndex: 0, BaseInstance: 0}, cmd)

	cmd, err = table.Command(1)
	require.NoError(t, err)
	assert.Equal(t, metadata.DrawIndexedIndirectCommand{Count: 6, InstanceCount: 1, FirstIndex: 3, BaseInstance: 2}, cmd)
	assert.Equal(t, uint64(3), table.Instances())
}

func TestCommandTracksSize(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	table, _ := newTable(t, buffer.LayoutInterleaved, 4, 1, 6, 3)

	for n := 0; n < 40; n++ {
		i := rng.Intn(table.Len())
		b, err := table.Batch(i)
		require.NoError(t, err)

		color, transform := instance(n)
		err = table.PushInstance(i, &color, &transform)
		if b.Size == b.Capacity {
			assert.ErrorIs(t, err, core.ErrCapacityExceeded)
		} else {
			assert.NoError(t, err)
		}

		for j, b := range table.Batches() {
			cmd, err := table.Command(j)
			require.NoError(t, err)
			assert.Equal(t, b.Size, cmd.InstanceCount)
			assert.LessOrEqual(t, b.Size, b.Capacity)
		}
	}
}

func TestCapacityExceededLeavesStateUnchanged(t *testing.T) {
	table, _ := newTable(t, buffer.LayoutPacked, 1, 2)
	push(t, table, 0, 0)

	color, transform := instance(9)
	err := table.PushInstance(0, &color, &transform)
	assert.ErrorIs(t, err, core.ErrCapacityExceeded)

	b, err := table.Batch(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), b.Size)
	cmd, err := table.Command(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), cmd.InstanceCount)

	// the neighbouring batch was not touched either
	b, err = table.Batch(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), b.Size)
}

func TestBadPushLeavesStateUnchanged(t *testing.T) {
	table, _ := newTable(t, buffer.LayoutPacked, 2)
	color := math.NewVec3(1, 1, 1)
	assert.ErrorIs(t, table.PushInstance(0, &color), core.ErrFieldMismatch)
	assert.ErrorIs(t, table.PushInstance(0, &color, &color), core.ErrFieldMismatch)
	assert.ErrorIs(t, table.PushInstance(5, &color), core.ErrOutOfRange)

	b, err := table.Batch(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), b.Size)
	assert.False(t, table.isMapped())
}

func TestBatchRangesPartitionTheBuffer(t *testing.T) {
	for _, capacities := range [][]uint32{{1}, {2, 3}, {0, 5, 0, 1}, {7, 7, 7, 7, 7}, {100, 1, 30}} {
		table, _ := newTable(t, buffer.LayoutPacked, capacities...)

		var next uint32
		for _, b := range table.Batches() {
			assert.Equal(t, next, b.Offset, "batches are contiguous")
			next += b.Capacity
		}
		assert.Equal(t, table.instances.Capacity(), next, "batches cover the buffer")
	}
}

func TestResetBatchMatchesFreshTable(t *testing.T) {
	table, _ := newTable(t, buffer.LayoutPacked, 3, 2)
	fresh, _ := newTable(t, buffer.LayoutPacked, 3, 2)

	for n := 0; n < 3; n++ {
		push(t, table, 0, n)
	}
	push(t, table, 1, 0)
	require.NoError(t, table.ResetBatch(0))
	require.NoError(t, table.ResetBatch(1))

	for n := 0; n < 3; n++ {
		push(t, table, 0, n)
		push(t, fresh, 0, n)
		for i := 0; i < table.Len(); i++ {
			got, err := table.Command(i)
			require.NoError(t, err)
			want, err := fresh.Command(i)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}
	assert.Equal(t, fresh.Batches(), table.Batches())
}

func TestResetAll(t *testing.T) {
	table, _ := newTable(t, buffer.LayoutPacked, 2, 2)
	push(t, table, 0, 0)
	push(t, table, 1, 1)
	require.NoError(t, table.ResetAll())

	assert.Equal(t, uint64(0), table.Instances())
	for i := 0; i < table.Len(); i++ {
		cmd, err := table.Command(i)
		require.NoError(t, err)
		assert.Equal(t, uint32(0), cmd.InstanceCount)
	}
	_, err := table.Command(2)
	assert.ErrorIs(t, err, core.ErrOutOfRange)
}

func TestPushReadRoundTrip(t *testing.T) {
	for _, layout := range []buffer.Layout{buffer.LayoutInterleaved, buffer.LayoutPacked} {
		t.Run(layout.String(), func(t *testing.T) {
			table, _ := newTable(t, layout, 2, 3)
			for n := 0; n < 3; n++ {
				push(t, table, 1, n)
			}
			push(t, table, 0, 10)

			for n := 0; n < 3; n++ {
				var color math.Vec3
				var transform math.Mat4
				require.NoError(t, table.ReadInstance(1, uint32(n), &color, &transform))
				wantColor, wantTransform := instance(n)
				assert.Equal(t, wantColor, color)
				assert.Equal(t, wantTransform, transform)
			}

			var color math.Vec3
			var transform math.Mat4
			assert.ErrorIs(t, table.ReadInstance(0, 1, &color, &transform), core.ErrOutOfRange)
		})
	}
}

func TestOverwriteRange(t *testing.T) {
	table, _ := newTable(t, buffer.LayoutPacked, 4)
	push(t, table, 0, 0)
	push(t, table, 0, 1)

	record := func(n int) []buffer.Value {
		color, transform := instance(n)
		return []buffer.Value{&color, &transform}
	}

	// rewrite instance 1 and extend by two
	require.NoError(t, table.OverwriteRange(0, 1, record(21), record(22), record(23)))
	b, err := table.Batch(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), b.Size)
	cmd, err := table.Command(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), cmd.InstanceCount)

	var color math.Vec3
	var transform math.Mat4
	require.NoError(t, table.ReadInstance(0, 1, &color, &transform))
	want, _ := instance(21)
	assert.Equal(t, want, color)
	require.NoError(t, table.ReadInstance(0, 0, &color, &transform))
	want, _ = instance(0)
	assert.Equal(t, want, color)

	assert.ErrorIs(t, table.OverwriteRange(0, 3, record(1), record(2)), core.ErrCapacityExceeded)
	require.NoError(t, table.ResetBatch(0))
	assert.ErrorIs(t, table.OverwriteRange(0, 1, record(1)), core.ErrOutOfRange)
	assert.NoError(t, table.OverwriteRange(0, 0))
}

func TestNewTableErrors(t *testing.T) {
	backend := memory.New()
	registry := newRegistry(t, backend)

	_, err := NewTable(backend, registry, colorTransform(), buffer.LayoutPacked, nil)
	assert.ErrorIs(t, err, core.ErrInvalidCapacity)
	_, err = NewTable(backend, registry, colorTransform(), buffer.LayoutPacked, []BatchSpec{{Shape: 0}, {Shape: 1}})
	assert.ErrorIs(t, err, core.ErrInvalidCapacity)
	_, err = NewTable(backend, registry, colorTransform(), buffer.LayoutPacked, []BatchSpec{{Shape: 4, Capacity: 1}})
	assert.ErrorIs(t, err, core.ErrOutOfRange)
	assert.False(t, registry.Sealed(), "failed construction does not seal")

	empty, err := NewRegistry(backend)
	require.NoError(t, err)
	_, err = NewTable(backend, empty, colorTransform(), buffer.LayoutPacked, []BatchSpec{{Shape: 0, Capacity: 1}})
	assert.ErrorIs(t, err, core.ErrInvalidLayout)
}

func TestBinderScenario(t *testing.T) {
	table, backend := newTable(t, buffer.LayoutPacked, 2, 3)
	binder := NewBinder(table, 0)

	overflows, err := binder.Bind([]uint32{2, 3})
	require.NoError(t, err)
	assert.Empty(t, overflows)

	layout := backend.BoundLayout()
	require.NotNil(t, layout)
	assert.Len(t, layout.Attributes, GEOMETRY_SLOTS+1+4)

	color, ok := layout.AttributeBySlot(2)
	require.True(t, ok)
	assert.Equal(t, uint64(0), color.Offset)
	assert.Equal(t, uint32(12), color.Stride)
	assert.Equal(t, uint32(3), color.Components)
	assert.Equal(t, uint32(1), color.Divisor)

	for k := uint32(0); k < 4; k++ {
		column, ok := layout.AttributeBySlot(3 + k)
		require.True(t, ok)
		assert.Equal(t, uint64(12*5+16*k), column.Offset, "column %d", k)
		assert.Equal(t, uint32(64), column.Stride)
		assert.Equal(t, uint32(4), column.Components)
		assert.Equal(t, uint32(1), column.Divisor)
		assert.Equal(t, metadata.ATTRIBUTE_KIND_FLOAT32, column.Kind)
	}

	position, ok := layout.AttributeBySlot(POSITION_SLOT)
	require.True(t, ok)
	assert.Equal(t, uint32(0), position.Divisor)
}

func TestBinderInterleavedStride(t *testing.T) {
	table, _ := newTable(t, buffer.LayoutInterleaved, 2)
	attributes, _, err := NewBinder(table, 0).Attributes([]uint32{2, 3})
	require.NoError(t, err)
	for _, a := range attributes {
		assert.Equal(t, uint32(76), a.Stride)
	}
	assert.Equal(t, uint64(12+16*3), attributes[4].Offset)
}

func TestBinderOverflowWarns(t *testing.T) {
	backend := memory.New()
	registry := newRegistry(t, backend)
	fields := []buffer.Field{buffer.Mat4("transform"), buffer.Vec4("color")}
	table, err := NewTable(backend, registry, fields, buffer.LayoutPacked, []BatchSpec{{Shape: 0, Capacity: 2}})
	require.NoError(t, err)

	overflows, err := NewBinder(table, 0).Bind([]uint32{2, 4})
	require.NoError(t, err)
	require.Len(t, overflows, 1)
	assert.Equal(t, SlotOverflow{Field: "transform", Index: 0, Slot: 2, Width: 4, Next: 4}, overflows[0])

	// the later field wins the shared slot
	color, ok := backend.BoundLayout().AttributeBySlot(4)
	require.True(t, ok)
	assert.Equal(t, table.instances.Offset(1), color.Offset)
}

type rejectingBackend struct {
	*memory.Backend
}

func (rejectingBackend) VertexLayoutBind(layout *metadata.VertexLayout) error {
	return core.ErrInvalidLayout
}

func TestBinderKeepsLayoutWhenBindFails(t *testing.T) {
	table, backend := newTable(t, buffer.LayoutPacked, 2)
	before := table.VertexLayout()

	table.backend = rejectingBackend{backend}
	_, err := NewBinder(table, 0).Bind([]uint32{2, 3})
	assert.ErrorIs(t, err, core.ErrInvalidLayout)
	assert.Equal(t, before, table.VertexLayout())

	table.backend = backend
	_, err = NewBinder(table, 0).Bind([]uint32{2, 3})
	require.NoError(t, err)
	assert.Len(t, table.VertexLayout().Attributes, GEOMETRY_SLOTS+1+4)
}

func TestBinderRejectsBadAssignments(t *testing.T) {
	table, _ := newTable(t, buffer.LayoutPacked, 2)
	binder := NewBinder(table, 8)

	_, err := binder.Bind([]uint32{2})
	assert.ErrorIs(t, err, core.ErrSlotAssignment)
	_, err = binder.Bind([]uint32{1, 3})
	assert.ErrorIs(t, err, core.ErrSlotAssignment)
	_, err = binder.Bind([]uint32{2, 5})
	assert.ErrorIs(t, err, core.ErrSlotAssignment, "slots 5..8 exceed 8 slots")
	_, err = binder.Bind([]uint32{2, 4})
	assert.NoError(t, err)
}

func TestBinderSmallKinds(t *testing.T) {
	backend := memory.New()
	registry := newRegistry(t, backend)
	fields := []buffer.Field{
		{Name: "weights", Kind: metadata.ATTRIBUTE_KIND_FLOAT64, Components: 3},
		{Name: "flags", Kind: metadata.ATTRIBUTE_KIND_UINT16, Components: 2},
	}
	table, err := NewTable(backend, registry, fields, buffer.LayoutPacked, []BatchSpec{{Shape: 0, Capacity: 1}})
	require.NoError(t, err)

	attributes, overflows, err := NewBinder(table, 0).Attributes([]uint32{2, 4})
	require.NoError(t, err)
	assert.Empty(t, overflows)
	require.Len(t, attributes, 3)
	assert.Equal(t, uint32(2), attributes[0].Components)
	assert.Equal(t, uint32(1), attributes[1].Components)
	assert.Equal(t, uint64(16), attributes[1].Offset)
	assert.Equal(t, uint32(2), attributes[2].Components)
	assert.False(t, attributes[2].Kind.IsFloat())
}

func TestRenderIssuesOneSubmission(t *testing.T) {
	table, backend := newTable(t, buffer.LayoutPacked, 2, 3)
	_, err := NewBinder(table, 0).Bind([]uint32{2, 3})
	require.NoError(t, err)

	push(t, table, 0, 0)
	push(t, table, 1, 1)
	push(t, table, 1, 2)

	renderer := NewRenderer(table)
	require.NoError(t, renderer.Render())

	require.Len(t, backend.Submissions(), 1)
	sub, _ := backend.LastSubmission()
	require.Len(t, sub.Commands, 2)
	assert.Equal(t, uint32(1), sub.Commands[0].InstanceCount)
	assert.Equal(t, uint32(2), sub.Commands[1].InstanceCount)
	assert.Equal(t, uint32(3), sub.Commands[1].FirstIndex)
	assert.Equal(t, uint64(3), sub.Instances())

	metrics := core.MetricsSnapshot()
	assert.Equal(t, uint32(2), metrics.DrawCommands)
	assert.Equal(t, uint64(3), metrics.Instances)

	assert.Equal(t, metadata.DRAW_INDEXED_INDIRECT_COMMAND_SIZE, renderer.Submission().Stride)
}

func TestRenderWhileMapped(t *testing.T) {
	table, backend := newTable(t, buffer.LayoutPacked, 2)
	require.NoError(t, table.instances.Map(metadata.MAP_ACCESS_WRITE))

	renderer := NewRenderer(table)
	assert.ErrorIs(t, renderer.Render(), core.ErrMapUnmapMisuse)
	assert.Empty(t, backend.Submissions())

	_, err := NewBinder(table, 0).Bind([]uint32{2, 3})
	assert.ErrorIs(t, err, core.ErrMapUnmapMisuse)

	require.NoError(t, table.instances.Unmap())
	assert.NoError(t, renderer.Render())
}

func TestDestroyReleasesBuffers(t *testing.T) {
	table, backend := newTable(t, buffer.LayoutPacked, 2)
	require.NoError(t, table.Destroy())
	require.NoError(t, table.registry.Destroy())
	assert.Equal(t, 0, backend.Live())
}
