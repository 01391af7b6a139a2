//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every test with the race detector. No GPU is needed: the engine
// tests run on the host-memory backend.
func (Test) All() error {
	return goCmd("test", "-race", "-count=1", "./...")
}

// Runs the batching packages only.
func (Test) Batch() error {
	return goCmd("test", "-count=1", "./engine/renderer/...")
}
