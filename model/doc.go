// Package model defines core types used throughout redline.
//
// # Documents
//
//   - Document: stored text with title, version and timestamps
//
// # Edits
//
//   - RangeEdit: replace a code-point range [Start, End)
//   - TargetEdit: replace the n-th occurrence of a substring
//
// # Search
//
//   - SearchHit: a match with its code-point offset and context window
//   - SearchOptions: limit, offset and context width of a query
package model
