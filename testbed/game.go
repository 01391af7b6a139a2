package testbed

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/spaghettifunk/multibatch/engine"
	"github.com/spaghettifunk/multibatch/engine/config"
	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/math"
	"github.com/spaghettifunk/multibatch/engine/renderer/buffer"
)

type TestGame struct {
	*engine.Game
}

type shapeState struct {
	// Instances pushed every frame. Grows by one per frame until the batch
	// reports it is full.
	population uint32
	full       bool
	colour     math.Vec4
}

type gameState struct {
	frames  uint64
	elapsed float64
	shapes  map[string]*shapeState
}

var palette = []math.Vec4{
	math.NewVec4(0.90, 0.30, 0.25, 1),
	math.NewVec4(0.25, 0.65, 0.90, 1),
	math.NewVec4(0.35, 0.85, 0.40, 1),
	math.NewVec4(0.95, 0.80, 0.25, 1),
}

func NewTestGame(cfg *config.Config, configPath, assetsDir string) (*TestGame, error) {
	if cfg == nil {
		return nil, fmt.Errorf("testbed needs a configuration")
	}
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				Config:     cfg,
				ConfigPath: configPath,
				AssetsDir:  assetsDir,
			},
			State: &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnReload = tg.OnReload

	return tg, nil
}

func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogDebug("TestGame Initialize fn....")

	if err := checkFields(e.Table().Fields()); err != nil {
		return err
	}
	core.EventRegister(core.EVENT_CODE_BATCH_FULL, g, g.onBatchFull)
	core.EventRegister(core.EVENT_CODE_SCENE_REBUILT, g, g.onSceneRebuilt)
	g.resetShapes(e)
	return nil
}

// checkFields makes sure the instance record is the colour and transform
// pair the testbed writes.
func checkFields(fields []buffer.Field) error {
	if len(fields) != 2 || fields[0].Size() != 16 || fields[1].Size() != 64 {
		return fmt.Errorf("testbed expects a 4 component colour and a 16 component transform, got %d attributes", len(fields))
	}
	return nil
}

func (g *TestGame) resetShapes(e *engine.Engine) {
	state := g.State.(*gameState)
	state.shapes = make(map[string]*shapeState)
	for i, shape := range e.Registry().Shapes() {
		state.shapes[shape.Name] = &shapeState{colour: palette[i%len(palette)]}
	}
}

func (g *TestGame) Update(e *engine.Engine, deltaTime float64) error {
	state := g.State.(*gameState)
	state.elapsed += deltaTime
	state.frames++

	for row, b := range e.Table().Batches() {
		s, ok := state.shapes[b.Shape.Name]
		if !ok {
			continue
		}
		if !s.full {
			s.population++
		}
		if err := e.Submit(engine.ResetBatch(b.Shape.Name)); err != nil {
			return err
		}
		for k := uint32(0); k < s.population; k++ {
			colour := s.colour
			colour.W = 0.5 + 0.5*math32.Sin(float32(state.elapsed)+float32(k))
			transform := g.placement(row, k, b.Capacity, float32(state.elapsed))
			if err := e.Submit(engine.PushInstance(b.Shape.Name, &colour, &transform)); err != nil {
				// The queue is full; whatever made it in is drawn this frame.
				core.LogWarn("dropping instances of %s: %s", b.Shape.Name, err)
				break
			}
		}
	}

	if state.frames%60 == 0 {
		snapshot := core.MetricsSnapshot()
		core.LogDebug("frame %d: %d draw commands, %d instances, %.1f fps", state.frames, snapshot.DrawCommands, snapshot.Instances, snapshot.FPS)
	}
	return nil
}

// placement lays the instances of one batch out on a grid, one grid per
// batch, spinning over time.
func (g *TestGame) placement(row int, k, capacity uint32, elapsed float32) math.Mat4 {
	side := uint32(math32.Ceil(math32.Sqrt(float32(max(capacity, 1)))))
	x := float32(k%side) - float32(side)/2
	z := float32(k/side) - float32(side)/2
	t := math.TransformFromPositionRotationScale(
		math.NewVec3(x*2.5, float32(row)*4, z*2.5),
		math.NewVec3(0, elapsed*math.K_HALF_PI+math.DegToRad(6*float32(k)), 0),
		math.NewVec3One(),
	)
	return t.Matrix()
}

func (g *TestGame) OnReload(e *engine.Engine) error {
	core.LogInfo("scene reloaded with %d batches", e.Table().Len())
	return checkFields(e.Table().Fields())
}

func (g *TestGame) onBatchFull(code core.SystemEventCode, sender interface{}, listenerInst interface{}, data core.EventContext) bool {
	state := g.State.(*gameState)
	s, ok := state.shapes[data.Data.C[0]]
	if !ok || s.full {
		return false
	}
	s.full = true
	s.population--
	core.LogInfo("batch %s is full at %d instances (frame %d)", data.Data.C[0], s.population, data.Data.U64[0])
	return false
}

func (g *TestGame) onSceneRebuilt(code core.SystemEventCode, sender interface{}, listenerInst interface{}, data core.EventContext) bool {
	e, ok := sender.(*engine.Engine)
	if !ok {
		return false
	}
	core.LogInfo("scene rebuilt: %d batches, %d instances of capacity", data.Data.U32[0], data.Data.U32[1])
	g.resetShapes(e)
	return false
}
