package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/multibatch/engine/assets"
	"github.com/spaghettifunk/multibatch/engine/config"
	"github.com/spaghettifunk/multibatch/engine/containers"
	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/renderer"
	"github.com/spaghettifunk/multibatch/engine/renderer/batch"
	"github.com/spaghettifunk/multibatch/engine/systems"
)

/** @brief The number of mutations that can wait for the next frame. */
const DEFAULT_MUTATION_QUEUE_SIZE int = 1 << 14

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released every resource
	EngineStageShutdown
)

type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	config        *config.Config
	systemManager *systems.SystemManager
	watcher       *config.Watcher
	queue         *containers.RingQueue[Mutation]
	clock         *core.Clock
	lastTime      float64

	stageMutex sync.Mutex
	stop       chan struct{}
	stopOnce   sync.Once
	closeOnce  sync.Once
	closeErr   error
}

func New(g *Game) (*Engine, error) {
	if g.ApplicationConfig == nil || g.ApplicationConfig.Config == nil {
		return nil, fmt.Errorf("%w: game has no configuration", config.ErrInvalidConfig)
	}
	cfg := g.ApplicationConfig.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	core.SetLogLevel(cfg.Level())

	rs, err := systems.NewRendererSystem(cfg.RendererType(), cfg.Name, cfg.Debug)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return newEngine(g, rs)
}

// NewWithRendererSystem builds an engine around an existing renderer
// system, for hosts that create their own backend.
func NewWithRendererSystem(g *Game, rs *systems.RendererSystem) (*Engine, error) {
	if g.ApplicationConfig == nil || g.ApplicationConfig.Config == nil {
		return nil, fmt.Errorf("%w: game has no configuration", config.ErrInvalidConfig)
	}
	if err := g.ApplicationConfig.Config.Validate(); err != nil {
		return nil, err
	}
	return newEngine(g, rs)
}

func newEngine(g *Game, rs *systems.RendererSystem) (*Engine, error) {
	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	sm, err := systems.NewSystemManager(rs, am, g.ApplicationConfig.AssetsDir)
	if err != nil {
		return nil, err
	}

	queueSize := g.ApplicationConfig.MutationQueueSize
	if queueSize <= 0 {
		queueSize = DEFAULT_MUTATION_QUEUE_SIZE
	}
	return &Engine{
		currentStage:  EngineStageUninitialized,
		gameInstance:  g,
		config:        g.ApplicationConfig.Config,
		systemManager: sm,
		queue:         containers.NewRingQueue[Mutation](queueSize),
		clock:         core.NewClock(),
		stop:          make(chan struct{}),
	}, nil
}

func (e *Engine) setStage(s Stage) {
	e.stageMutex.Lock()
	defer e.stageMutex.Unlock()
	e.currentStage = s
}

func (e *Engine) Stage() Stage {
	e.stageMutex.Lock()
	defer e.stageMutex.Unlock()
	return e.currentStage
}

// Initialize builds the scene from the configuration and calls the game's
// initialize hook.
func (e *Engine) Initialize() error {
	e.setStage(EngineStageInitializing)

	if err := core.MetricsInitialize(); err != nil {
		return err
	}
	if err := e.systemManager.Initialize(); err != nil {
		return err
	}
	if err := e.systemManager.Build(e.config); err != nil {
		core.LogError("failed to build the scene: %s", err)
		return err
	}
	e.sceneRebuilt()
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, onQuit)

	if path := e.gameInstance.ApplicationConfig.ConfigPath; path != "" {
		w, err := config.NewWatcher(path)
		if err != nil {
			core.LogWarn("configuration %s will not be reloaded: %s", path, err)
		} else {
			e.watcher = w
		}
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e); err != nil {
			return err
		}
	}
	e.setStage(EngineStageInitialized)
	return nil
}

// sceneRebuilt logs the new batch table and tells listeners about it.
func (e *Engine) sceneRebuilt() {
	rs := e.systemManager.RendererSystem
	var capacity uint32
	batches := rs.Table().Batches()
	for _, b := range batches {
		core.LogInfo("batch %q: %d indices, capacity %d, first instance %d", b.Shape.Name, b.Shape.ElementCount, b.Capacity, b.Offset)
		capacity += b.Capacity
	}
	for _, o := range rs.SlotOverflows() {
		core.LogWarn(o.String())
	}

	context := core.EventContext{}
	context.Data.U32[0] = uint32(len(batches))
	context.Data.U32[1] = capacity
	context.Data.U64[0] = rs.FrameNumber
	core.EventFire(core.EVENT_CODE_SCENE_REBUILT, e, context)
}

func onQuit(code core.SystemEventCode, sender interface{}, listenerInst interface{}, data core.EventContext) bool {
	e := listenerInst.(*Engine)
	core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
	e.stopOnce.Do(func() { close(e.stop) })
	return true
}

// Submit queues m for the next frame. Safe to call from any goroutine.
func (e *Engine) Submit(m Mutation) error {
	return e.queue.Enqueue(m)
}

// Frame runs one frame: game update, every queued mutation in submission
// order, then the multi-draw.
func (e *Engine) Frame() error {
	e.clock.Update()
	currentTime := e.clock.Elapsed()
	delta := currentTime - e.lastTime
	frameStart := currentTime

	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(e, delta); err != nil {
			core.LogError("Game update failed: %s", err)
			return err
		}
	}

	rs := e.systemManager.RendererSystem
	registry, table := rs.Registry(), rs.Table()
	err := e.queue.Drain(func(m Mutation) error {
		err := m.apply(registry, table)
		if errors.Is(err, core.ErrCapacityExceeded) {
			context := core.EventContext{}
			context.Data.C[0] = m.Shape
			context.Data.U64[0] = rs.FrameNumber
			core.EventFire(core.EVENT_CODE_BATCH_FULL, e, context)
		}
		return err
	})
	if err != nil {
		// A full batch or a stale shape name drops the mutation, not the frame.
		core.LogWarn("mutations dropped this frame: %s", err)
		if errors.Is(err, core.ErrMapUnmapMisuse) {
			return err
		}
	}

	if err := rs.DrawFrame(); err != nil {
		core.LogError("draw failed: %s", err)
		return err
	}

	e.clock.Update()
	core.MetricsUpdate(e.clock.Elapsed() - frameStart)
	e.lastTime = currentTime
	return nil
}

// Run drives frames until the configured frame count is reached or
// Shutdown is called, reloading the scene whenever the configuration or a
// model file changes. Resources are released before it returns.
func (e *Engine) Run() error {
	e.setStage(EngineStageRunning)
	e.clock.Start()
	defer e.close()

	frames := e.config.Frames
	var configs <-chan *config.Config
	var configErrs <-chan error
	if e.watcher != nil {
		configs = e.watcher.Configs()
		configErrs = e.watcher.Errors()
	}
	changes := e.systemManager.AssetChanges()

	for n := uint64(0); frames == 0 || n < frames; n++ {
		select {
		case <-e.stop:
			core.LogInfo("shutdown requested, stopping after %d frames", n)
			return nil
		case cfg, ok := <-configs:
			if !ok {
				configs = nil
				break
			}
			if err := e.Reload(cfg); err != nil {
				core.LogError("reload failed, keeping the previous scene: %s", err)
			}
		case err, ok := <-configErrs:
			if !ok {
				configErrs = nil
				break
			}
			core.LogWarn("ignoring configuration change: %s", err)
		case path, ok := <-changes:
			if !ok {
				changes = nil
				break
			}
			core.LogInfo("model %s changed, rebuilding", path)
			context := core.EventContext{}
			context.Data.C[0] = path
			core.EventFire(core.EVENT_CODE_ASSET_CHANGED, e, context)
			if err := e.Reload(e.config); err != nil {
				core.LogError("rebuild failed: %s", err)
			}
		default:
		}

		if err := e.Frame(); err != nil {
			return err
		}
	}
	fps, frameTime := core.MetricsFrame()
	core.LogInfo("ran %d frames, %.1f fps, %.3f ms per frame", frames, fps, frameTime)
	return nil
}

// Reload rebuilds the scene from cfg. Capacities can only change through a
// rebuild, so every batch starts empty afterwards. On failure the previous
// configuration is rebuilt.
func (e *Engine) Reload(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.RendererType() != e.systemManager.RendererSystem.BackendType() {
		core.LogWarn("backend change to %s needs a restart, keeping %s", cfg.RendererType(), e.systemManager.RendererSystem.BackendType())
	}
	core.SetLogLevel(cfg.Level())

	previous := e.config
	if err := e.systemManager.Build(cfg); err != nil {
		if rebuildErr := e.systemManager.Build(previous); rebuildErr != nil {
			return errors.Join(err, rebuildErr)
		}
		e.sceneRebuilt()
		return err
	}
	e.config = cfg
	e.sceneRebuilt()

	if e.gameInstance.FnOnReload != nil {
		return e.gameInstance.FnOnReload(e)
	}
	return nil
}

// Shutdown asks a running engine to stop after the current frame. An engine
// that is not running releases its resources right away.
func (e *Engine) Shutdown() error {
	e.stopOnce.Do(func() { close(e.stop) })
	if e.Stage() == EngineStageRunning {
		return nil
	}
	return e.close()
}

func (e *Engine) close() error {
	e.closeOnce.Do(func() {
		e.setStage(EngineStageShuttingDown)
		core.EventUnregisterListener(e)
		var errs []error
		if e.watcher != nil {
			errs = append(errs, e.watcher.Close())
		}
		errs = append(errs, e.systemManager.Shutdown())
		e.closeErr = errors.Join(errs...)
		e.setStage(EngineStageShutdown)
		core.LogInfo("engine shut down")
	})
	return e.closeErr
}

func (e *Engine) Config() *config.Config { return e.config }

func (e *Engine) Backend() renderer.RendererBackend {
	return e.systemManager.RendererSystem.Backend()
}

// Table exposes the batch table for reads. Mutations go through Submit.
func (e *Engine) Table() *batch.Table { return e.systemManager.RendererSystem.Table() }

func (e *Engine) Registry() *batch.Registry { return e.systemManager.RendererSystem.Registry() }

// Pending returns the number of mutations waiting for the next frame.
func (e *Engine) Pending() int { return e.queue.Len() }
