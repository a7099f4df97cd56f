package redaction

import (
	"unicode/utf8"

	"github.com/Treamyracle/INFOMEDIA/internal/vault"
)

// Zone is a half-open byte range [Start, End) of text.
type Zone struct {
	Start int
	End   int
}

// Overlaps reports whether z and o share at least one byte.
func (z Zone) Overlaps(o Zone) bool {
	return z.Start < o.End && o.Start < z.End
}

// ForbiddenZones returns the ranges of every tag already present in text.
// Entity substitution must not touch them.
func ForbiddenZones(text string) []Zone {
	locs := vault.TagPattern.FindAllStringIndex(text, -1)
	zones := make([]Zone, 0, len(locs))
	for _, l := range locs {
		zones = append(zones, Zone{Start: l[0], End: l[1]})
	}
	return zones
}

func overlapsAny(z Zone, zones []Zone) bool {
	for _, f := range zones {
		if z.Overlaps(f) {
			return true
		}
	}
	return false
}

// byteOffsets maps code-point offsets to byte offsets. offsets[i] is the byte
// index of the i-th rune and offsets[RuneCount] is len(text).
func byteOffsets(text string) []int {
	offsets := make([]int, 0, utf8.RuneCountInString(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	return append(offsets, len(text))
}

// toZone converts a code-point range to a byte Zone. ok is false when the
// range is empty, reversed or outside the text.
func toZone(offsets []int, start, end int) (Zone, bool) {
	if start < 0 || end > len(offsets)-1 || start >= end {
		return Zone{}, false
	}
	return Zone{Start: offsets[start], End: offsets[end]}, true
}
