package textedit

import (
	"strings"
	"unicode/utf8"
)

// ApplyRange returns text with the code points in [start, end) replaced.
func ApplyRange(text string, start, end int, replacement string) (string, error) {
	length := utf8.RuneCountInString(text)
	if start < 0 || start > end || end > length {
		return "", &RangeError{Start: start, End: end, Length: length}
	}
	bs := byteOffset(text, start)
	be := bs + byteOffset(text[bs:], end-start)

	var b strings.Builder
	b.Grow(len(text) - (be - bs) + len(replacement))
	b.WriteString(text[:bs])
	b.WriteString(replacement)
	b.WriteString(text[be:])
	return b.String(), nil
}

// ApplyTarget replaces the occurrence-th non-overlapping, case-sensitive
// match of target, scanning left to right. It returns the new text and the
// total number of matches in the original text.
func ApplyTarget(text, target string, occurrence int, replacement string) (string, int, error) {
	if target == "" {
		return "", 0, ErrEmptyTarget
	}
	starts := byteMatches(text, target)
	if occurrence < 1 {
		return "", len(starts), ErrInvalidOccurrence
	}
	if occurrence > len(starts) {
		return "", len(starts), &TargetNotFoundError{
			Target:     target,
			Occurrence: occurrence,
			Matches:    len(starts),
		}
	}
	at := starts[occurrence-1]

	var b strings.Builder
	b.Grow(len(text) - len(target) + len(replacement))
	b.WriteString(text[:at])
	b.WriteString(replacement)
	b.WriteString(text[at+len(target):])
	return b.String(), len(starts), nil
}

// Matches returns the code-point offsets of every non-overlapping match of
// target, left to right. An empty target has no matches.
func Matches(text, target string) []int {
	if target == "" {
		return nil
	}
	starts := byteMatches(text, target)
	out := make([]int, len(starts))
	prevByte, prevRune := 0, 0
	for i, at := range starts {
		prevRune += utf8.RuneCountInString(text[prevByte:at])
		prevByte = at
		out[i] = prevRune
	}
	return out
}

// byteMatches returns byte offsets of non-overlapping matches.
func byteMatches(text, target string) []int {
	var starts []int
	for pos := 0; pos <= len(text)-len(target); {
		i := strings.Index(text[pos:], target)
		if i < 0 {
			break
		}
		starts = append(starts, pos+i)
		pos += i + len(target)
	}
	return starts
}

// byteOffset converts a code-point count into a byte offset within s.
// n must not exceed the rune count of s.
func byteOffset(s string, n int) int {
	if n == 0 {
		return 0
	}
	i := 0
	for off := range s {
		if i == n {
			return off
		}
		i++
	}
	return len(s)
}
