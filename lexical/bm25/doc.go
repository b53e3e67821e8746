// Package bm25 scores documents of a lexical index with BM25.
//
// BM25 (Best Matching 25) ranks documents by term frequency, inverse
// document frequency and length normalization. The index is used by
// relevance-ranked searches; the default search order does not score.
//
// # Usage
//
//	idx := bm25.New()
//	idx.Add(0, []string{"the", "quick", "brown", "fox"})
//	idx.Add(1, []string{"fox", "and", "dog"})
//
//	scores := idx.Score([]string{"fox"})
//
// # Parameters
//
// Uses standard BM25 parameters: k1=1.2, b=0.75
//
// # Thread Safety
//
// The index is safe for concurrent reads and writes.
package bm25
