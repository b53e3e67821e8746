// Package testutil provides testing utilities for redline.
//
// This package is intended for use in tests only. It provides a seeded,
// thread-safe RNG for randomized interleavings and random text generation.
//
//	rng := testutil.NewRNG(seed)
//	text := rng.Text(64)
//	ids := rng.Subset([]string{"a", "b", "c"}, 2)
package testutil
