package bm25

import (
	"math"
	"sync"
)

const (
	k1 = 1.2
	b  = 0.75
)

type posting struct {
	doc   uint32
	count int
}

// MemoryIndex is a simple in-memory BM25 index keyed by document ordinal.
type MemoryIndex struct {
	mu          sync.RWMutex
	inverted    map[string][]posting
	docLengths  map[uint32]int
	totalLength int64
	docCount    int
}

// New creates a new MemoryIndex.
func New() *MemoryIndex {
	return &MemoryIndex{
		inverted:   make(map[string][]posting),
		docLengths: make(map[uint32]int),
	}
}

// Add indexes the normalized tokens of a document.
// Adding an ordinal twice replaces the earlier entry.
func (idx *MemoryIndex) Add(doc uint32, tokens []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.docLengths[doc]; ok {
		idx.deleteLocked(doc)
	}

	length := len(tokens)
	idx.docLengths[doc] = length
	idx.totalLength += int64(length)
	idx.docCount++

	// Count term frequencies
	tf := make(map[string]int)
	for _, t := range tokens {
		tf[t]++
	}

	for t, count := range tf {
		idx.inverted[t] = append(idx.inverted[t], posting{doc: doc, count: count})
	}
}

func (idx *MemoryIndex) deleteLocked(doc uint32) {
	length, ok := idx.docLengths[doc]
	if !ok {
		return
	}

	// O(terms * docs); replacing is rare since snapshots are rebuilt whole.
	for t, postings := range idx.inverted {
		for i, p := range postings {
			if p.doc == doc {
				idx.inverted[t] = append(postings[:i], postings[i+1:]...)
				break
			}
		}
	}

	delete(idx.docLengths, doc)
	idx.totalLength -= int64(length)
	idx.docCount--
}

// Len returns the number of indexed documents.
func (idx *MemoryIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.docCount
}

// Score returns the BM25 score of every document containing at least one of
// the tokens.
func (idx *MemoryIndex) Score(tokens []string) map[uint32]float64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	scores := make(map[uint32]float64)
	if idx.docCount == 0 {
		return scores
	}

	avgDL := float64(idx.totalLength) / float64(idx.docCount)

	for _, t := range tokens {
		postings, ok := idx.inverted[t]
		if !ok {
			continue
		}

		idf := idx.computeIDF(len(postings))

		for _, p := range postings {
			tf := float64(p.count)
			docLen := float64(idx.docLengths[p.doc])

			num := tf * (k1 + 1)
			denom := tf + k1*(1-b+b*(docLen/avgDL))
			scores[p.doc] += idf * (num / denom)
		}
	}

	return scores
}

func (idx *MemoryIndex) computeIDF(df int) float64 {
	// IDF = log(1 + (N - n + 0.5) / (n + 0.5))
	N := float64(idx.docCount)
	n := float64(df)
	return math.Log(1 + (N-n+0.5)/(n+0.5))
}
