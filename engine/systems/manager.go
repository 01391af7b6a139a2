package systems

import (
	"fmt"
	"os"

	"github.com/spaghettifunk/multibatch/engine/assets"
	"github.com/spaghettifunk/multibatch/engine/config"
	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/renderer/metadata"
)

type SystemManager struct {
	RendererSystem *RendererSystem

	assetManager *assets.AssetManager
	assetsDir    string
}

func NewSystemManager(rs *RendererSystem, am *assets.AssetManager, assetsDir string) (*SystemManager, error) {
	if rs == nil {
		return nil, fmt.Errorf("renderer system is required")
	}
	return &SystemManager{
		RendererSystem: rs,
		assetManager:   am,
		assetsDir:      assetsDir,
	}, nil
}

// Initialize starts watching the assets directory, if there is one.
func (sm *SystemManager) Initialize() error {
	if sm.assetManager == nil || sm.assetsDir == "" {
		return nil
	}
	if s, err := os.Stat(sm.assetsDir); err != nil || !s.IsDir() {
		core.LogWarn("assets directory %q not found, models load from explicit paths only", sm.assetsDir)
		return nil
	}
	return sm.assetManager.Initialize(sm.assetsDir)
}

// LoadShape produces the shape data a configured shape describes.
func (sm *SystemManager) LoadShape(s config.Shape) (*metadata.ShapeData, error) {
	size := s.Size
	if size == 0 {
		size = 1
	}
	var (
		data *metadata.ShapeData
		err  error
	)
	switch s.Source {
	case "cube":
		data, err = GenerateCube(s.Name, size, size, size, 1, 1)
	case "plane":
		data, err = GeneratePlane(s.Name, size, size, s.Segments, s.Segments, 1, 1)
	default:
		if sm.assetManager == nil {
			return nil, fmt.Errorf("shape %q: no asset manager to load %q", s.Name, s.Source)
		}
		data, err = sm.assetManager.LoadShape(s.Source)
	}
	if err != nil {
		return nil, err
	}
	data.Name = s.Name
	return data, nil
}

// Build loads every configured shape and rebuilds the renderer around them.
func (sm *SystemManager) Build(cfg *config.Config) error {
	scene := &SceneConfig{
		Fields:         cfg.Fields(),
		Layout:         cfg.BufferLayout(),
		Slots:          cfg.Slots(),
		MaxVertexSlots: cfg.MaxVertexSlots,
		Shapes:         make([]ShapeBatch, 0, len(cfg.Shapes)),
	}
	for _, s := range cfg.Shapes {
		data, err := sm.LoadShape(s)
		if err != nil {
			return err
		}
		scene.Shapes = append(scene.Shapes, ShapeBatch{Data: data, Capacity: s.Capacity})
	}
	return sm.RendererSystem.Build(scene)
}

// AssetChanges reports model files that changed on disk. Nil when no
// assets directory is watched.
func (sm *SystemManager) AssetChanges() <-chan string {
	if sm.assetManager == nil {
		return nil
	}
	return sm.assetManager.Changes()
}

func (sm *SystemManager) Shutdown() error {
	err := sm.RendererSystem.Shutdown()
	if sm.assetManager != nil {
		sm.assetManager.Shutdown()
	}
	return err
}
