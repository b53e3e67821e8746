//go:build !unix && !windows

package blobstore

import "os"

// Platforms without advisory locks fall back to the in-process mutex only.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
