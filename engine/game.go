package engine

type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnOnReload        OnReload
}

// Initialize is called once the scene is built, before the first frame.
type Initialize func(e *Engine) error

// Update is called at the start of every frame, on the frame goroutine.
type Update func(e *Engine, deltaTime float64) error

// OnReload is called after the scene was rebuilt from a new configuration.
// Every batch is empty at that point.
type OnReload func(e *Engine) error
