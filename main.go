/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/multibatch/engine"
	"github.com/spaghettifunk/multibatch/engine/config"
	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/testbed"
)

func main() {
	var (
		configPath = flag.String("config", "testbed/config.toml", "scene configuration (toml or yaml), watched for changes")
		assetsDir  = flag.String("assets", "testbed/assets", "directory model files are loaded from")
		backend    = flag.String("backend", "", "renderer backend, overrides the configuration (memory or vulkan)")
		frames     = flag.Int64("frames", -1, "frames to run, overrides the configuration; 0 runs until interrupted")
		debug      = flag.Bool("debug", false, "enable the Vulkan validation layer and debug logging")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		core.LogFatal("failed to load %s: %s", *configPath, err)
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *frames >= 0 {
		cfg.Frames = uint64(*frames)
	}
	if *debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}

	tb, err := testbed.NewTestGame(cfg, *configPath, *assetsDir)
	if err != nil {
		core.LogFatal(err.Error())
	}

	engine, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := engine.Initialize(); err != nil {
		engine.Shutdown()
		core.LogFatal(err.Error())
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// start shutdown goroutine
	go func() {
		// capture sigterm and other system call here
		<-sigCh
		_ = engine.Shutdown()
	}()

	// run engine
	if err := engine.Run(); err != nil {
		core.LogFatal(err.Error())
	}
}
