// Package textedit computes new document text from redline edits.
//
// All functions are pure: inputs are never modified and no state is shared,
// so they are safe to call concurrently and without holding any lock.
// Offsets count Unicode code points, not bytes.
//
// # Range edits
//
//	out, err := textedit.ApplyRange("The cat sat on the mat.", 4, 7, "dog")
//	// out == "The dog sat on the mat."
//
// # Target edits
//
//	out, n, err := textedit.ApplyTarget("the cat and the cat", "cat", 2, "dog")
//	// out == "the cat and the dog", n == 2
package textedit
