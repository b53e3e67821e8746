// Package cache provides a small generic LRU.
//
// LRU bounds entries by count. Keys should embed whatever makes a value
// stale (e.g. a document version) so that outdated entries simply stop being
// requested and age out.
package cache
