//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the testbed headless on the host-memory backend.
func (Run) Engine() error {
	fmt.Println("Run engine...")
	return goCmd("run", "main.go", "-backend", "memory")
}

// Runs the testbed on the first Vulkan device supporting multi-draw indirect.
func (Run) Vulkan() error {
	fmt.Println("Run engine on Vulkan...")
	return goCmd("run", "main.go", "-backend", "vulkan", "-debug")
}
