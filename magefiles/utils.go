//go:build mage

package main

import (
	"fmt"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// goCmd runs the go tool from the module root and streams its output.
func goCmd(args ...string) error {
	fmt.Printf("Executing: go %s\n", strings.Join(args, " "))
	if err := sh.RunV(mg.GoCmd(), args...); err != nil {
		return fmt.Errorf("go %s failed: %w", args[0], err)
	}
	return nil
}

func goModTidy() error {
	return goCmd("mod", "tidy")
}
