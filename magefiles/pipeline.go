//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Pipeline groups targets that run the CLI against the live registry.
type Pipeline mg.Namespace

// Release prints the current registry release marker.
func (Pipeline) Release() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "release")
}

// Download plans and downloads every page of the current release.
func (Pipeline) Download() error {
	mg.Deps(Init, Build)
	return sh.RunV(binPath, "download")
}

// Ingest normalizes the latest run directory and loads it into the store.
func (Pipeline) Ingest() error {
	mg.Deps(Init, Build)
	release, err := sh.Output(binPath, "release")
	if err != nil {
		return err
	}
	return sh.RunV(binPath, "ingest", "--dir", filepath.Join(projectDirs[0], release))
}

// All downloads the current release and ingests it.
func (Pipeline) All() {
	mg.SerialDeps(Pipeline.Download, Pipeline.Ingest)
}
