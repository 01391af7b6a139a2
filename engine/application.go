package engine

import (
	"github.com/spaghettifunk/multibatch/engine/config"
)

type ApplicationConfig struct {
	// The scene, backend and logging setup.
	Config *config.Config
	// Path the config was loaded from. When set, the file is watched and
	// the scene rebuilt whenever it changes.
	ConfigPath string
	// Directory model files are resolved against and watched in.
	AssetsDir string
	// Capacity of the mutation queue; 0 selects DEFAULT_MUTATION_QUEUE_SIZE.
	MutationQueueSize int
}
