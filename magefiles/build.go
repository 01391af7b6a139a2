//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Runs go mod tidy and then builds the testbed binary into bin/.
func (Build) Engine() error {
	if err := goModTidy(); err != nil {
		return err
	}
	return goCmd("build", "-o", "bin/multibatch", ".")
}

// Runs go vet on every package.
func (Build) Vet() error {
	return goCmd("vet", "./...")
}
