// Package lexical implements the full-text search view over all documents.
//
// Text is split into tokens at every rune that is neither a letter nor a
// digit and tokens are lower-cased. The inverted index maps each token to
// (document, position) postings and a roaring bitmap of the documents that
// contain it.
//
// # Lazy Rebuild
//
// The index is never updated in place. Invalidate marks it stale; the next
// query (or an explicit EnsureBuilt) rebuilds it from the whole Corpus.
// Concurrent rebuilds collapse into one, and document loading fans out over
// a bounded worker pool. A rebuild that races an invalidation still serves
// the queries that triggered it but leaves the index stale.
//
// # Queries
//
// A query is tokenized like the text. Multi-token queries match adjacent
// tokens (phrases). Hits are ordered by document id and then offset, or by
// BM25 relevance when requested. Offsets and context windows count code
// points and are clamped to the document bounds.
//
//	idx := lexical.New(corpus)
//	hits, err := idx.Search(ctx, "beta", model.SearchOptions{Limit: 10, Buffer: 3})
package lexical
