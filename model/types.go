package model

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Document is the persisted unit of text.
type Document struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Text         string    `json:"text"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`
}

// Len returns the length of the text in code points.
func (d *Document) Len() int {
	return utf8.RuneCountInString(d.Text)
}

// String returns a short description for logs.
func (d *Document) String() string {
	return fmt.Sprintf("Doc(%s v%d)", d.ID, d.Version)
}

// RangeEdit replaces the code points in [Start, End) with Replacement.
type RangeEdit struct {
	DocumentID  string `json:"document_id"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Replacement string `json:"replacement"`
}

// TargetEdit replaces the Occurrence-th (1-based) non-overlapping match of
// Target with Replacement.
type TargetEdit struct {
	DocumentID  string `json:"document_id"`
	Target      string `json:"target"`
	Occurrence  int    `json:"occurrence"`
	Replacement string `json:"replacement"`
}

// SearchHit is a single match.
type SearchHit struct {
	// DocumentID identifies the matching document.
	DocumentID string `json:"document_id"`
	// Offset is the code-point offset of the match in the document text.
	Offset int `json:"offset"`
	// Context is the match plus up to Buffer code points on each side.
	Context string `json:"context"`
}

// Rank selects the order of search hits.
type Rank uint8

const (
	// RankDocument orders hits by document id, then offset.
	RankDocument Rank = iota
	// RankRelevance orders documents by BM25 score, then id; hits within a
	// document stay in offset order.
	RankRelevance
)

// SearchOptions controls the execution of a search query.
type SearchOptions struct {
	// Limit is the maximum number of hits returned. Zero means no limit.
	Limit int
	// Offset skips that many ranked hits (pagination).
	Offset int
	// Buffer is the number of code points of context on each side.
	Buffer int
	// Rank selects the hit order.
	Rank Rank
}

// DefaultSearchOptions returns the options used when none are given.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Limit:  10,
		Buffer: 50,
	}
}

// SearchOption configures SearchOptions.
type SearchOption func(*SearchOptions)

// WithLimit caps the number of hits.
func WithLimit(n int) SearchOption {
	return func(o *SearchOptions) { o.Limit = n }
}

// WithOffset skips the first n hits.
func WithOffset(n int) SearchOption {
	return func(o *SearchOptions) { o.Offset = n }
}

// WithBuffer sets the context width in code points.
func WithBuffer(n int) SearchOption {
	return func(o *SearchOptions) { o.Buffer = n }
}

// WithRank sets the hit order.
func WithRank(r Rank) SearchOption {
	return func(o *SearchOptions) { o.Rank = r }
}
