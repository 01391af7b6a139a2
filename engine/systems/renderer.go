package systems

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/renderer"
	"github.com/spaghettifunk/multibatch/engine/renderer/batch"
	"github.com/spaghettifunk/multibatch/engine/renderer/buffer"
	"github.com/spaghettifunk/multibatch/engine/renderer/memory"
	"github.com/spaghettifunk/multibatch/engine/renderer/metadata"
	"github.com/spaghettifunk/multibatch/engine/renderer/vulkan"
)

/** @brief A shape and the number of instances its batch holds. */
type ShapeBatch struct {
	Data     *metadata.ShapeData
	Capacity uint32
}

/** @brief Everything needed to build a batch table and bind its attributes. */
type SceneConfig struct {
	Fields         []buffer.Field
	Layout         buffer.Layout
	Slots          []uint32
	MaxVertexSlots uint32
	Shapes         []ShapeBatch
}

// RendererSystem owns the backend and the batching objects built on it:
// the shape registry, the batch table, the slot binder and the renderer.
type RendererSystem struct {
	backend     renderer.RendererBackend
	backendType renderer.RendererType

	registry *batch.Registry
	table    *batch.Table
	binder   *batch.Binder
	renderer *batch.Renderer
	overflow []batch.SlotOverflow

	FrameNumber uint64
}

// NewBackend creates the backend of the given type.
func NewBackend(backendType renderer.RendererType, appName string, debug bool) (renderer.RendererBackend, error) {
	switch backendType {
	case renderer.Memory:
		return memory.New(), nil
	case renderer.Vulkan:
		return vulkan.New(appName, debug)
	}
	return nil, fmt.Errorf("unknown renderer backend %s", backendType)
}

func NewRendererSystem(backendType renderer.RendererType, appName string, debug bool) (*RendererSystem, error) {
	backend, err := NewBackend(backendType, appName, debug)
	if err != nil {
		return nil, err
	}
	core.LogInfo("%s renderer backend created", backendType)
	return &RendererSystem{backend: backend, backendType: backendType}, nil
}

// NewRendererSystemWithBackend wraps an already created backend.
func NewRendererSystemWithBackend(backend renderer.RendererBackend) *RendererSystem {
	t := renderer.Memory
	if _, ok := backend.(*vulkan.VulkanRenderer); ok {
		t = renderer.Vulkan
	}
	return &RendererSystem{backend: backend, backendType: t}
}

// Build appends every shape to a fresh registry, builds the batch table
// over it and binds the instance attributes. Whatever was built before is
// torn down first.
func (r *RendererSystem) Build(scene *SceneConfig) error {
	if err := r.Teardown(); err != nil {
		return err
	}

	registry, err := batch.NewRegistry(r.backend)
	if err != nil {
		return err
	}
	specs := make([]batch.BatchSpec, 0, len(scene.Shapes))
	for _, s := range scene.Shapes {
		shape, err := registry.AppendShape(s.Data.Name, s.Data.Vertices, s.Data.Indices)
		if err != nil {
			registry.Destroy()
			return fmt.Errorf("shape %q: %w", s.Data.Name, err)
		}
		specs = append(specs, batch.BatchSpec{Shape: shape.Index, Capacity: s.Capacity})
	}

	table, err := batch.NewTable(r.backend, registry, scene.Fields, scene.Layout, specs)
	if err != nil {
		registry.Destroy()
		return err
	}

	maxSlots := scene.MaxVertexSlots
	if limiter, ok := r.backend.(renderer.VertexSlotLimiter); ok {
		if device := limiter.MaxVertexSlots(); maxSlots == 0 || device < maxSlots {
			maxSlots = device
		}
	}
	binder := batch.NewBinder(table, maxSlots)
	overflow, err := binder.Bind(scene.Slots)
	if err != nil {
		table.Destroy()
		registry.Destroy()
		return err
	}

	r.registry = registry
	r.table = table
	r.binder = binder
	r.overflow = overflow
	r.renderer = batch.NewRenderer(table)
	return nil
}

// Teardown destroys the table and registry buffers, if built.
func (r *RendererSystem) Teardown() error {
	var errs []error
	if r.table != nil {
		errs = append(errs, r.table.Destroy())
	}
	if r.registry != nil {
		errs = append(errs, r.registry.Destroy())
	}
	r.table, r.registry, r.binder, r.renderer, r.overflow = nil, nil, nil, nil, nil
	return errors.Join(errs...)
}

// DrawFrame issues the multi-draw of the current table.
func (r *RendererSystem) DrawFrame() error {
	if r.renderer == nil {
		return fmt.Errorf("%w: renderer has no batch table", core.ErrInvalidLayout)
	}
	recorder, records := r.backend.(renderer.FrameRecorder)
	if records {
		if err := recorder.BeginFrame(); err != nil {
			return err
		}
	}
	err := r.renderer.Render()
	if records {
		if endErr := recorder.EndFrame(); err == nil {
			err = endErr
		}
	}
	if err != nil {
		return err
	}
	r.FrameNumber++
	return nil
}

func (r *RendererSystem) Backend() renderer.RendererBackend { return r.backend }

func (r *RendererSystem) BackendType() renderer.RendererType { return r.backendType }

func (r *RendererSystem) Registry() *batch.Registry { return r.registry }

func (r *RendererSystem) Table() *batch.Table { return r.table }

// SlotOverflows returns the warnings of the last Build.
func (r *RendererSystem) SlotOverflows() []batch.SlotOverflow { return r.overflow }

func (r *RendererSystem) Shutdown() error {
	err := r.Teardown()
	if s, ok := r.backend.(renderer.Shutdowner); ok {
		s.Shutdown()
	}
	return err
}
