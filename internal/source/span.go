package source

import (
	"fmt"
)

// FileID identifies the compilation unit a span points into.
type FileID uint32

// NoFileID marks synthetic positions that do not belong to any unit.
const NoFileID FileID = 0

// Span is a half-open byte range inside a unit.
type Span struct {
	File  FileID
	Start uint32 // в байтах включительно
	End   uint32 // в байтах не включительно
}

// NoSpan is the position of trees produced without any source location.
var NoSpan = Span{}

// IsValid reports whether the span carries a real location.
func (s Span) IsValid() bool {
	return s != NoSpan
}

func (s Span) Empty() bool {
	return s.Start == s.End
}

func (s Span) Len() uint32 {
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d", s.File, s.Start, s.End)
}

// Focus collapses the span to its start offset. Expanded trees are anchored
// at the focus of the macro application that produced them.
func (s Span) Focus() Span {
	return Span{File: s.File, Start: s.Start, End: s.Start}
}

// Cover returns the smallest span containing both s and other.
// Spans from different files are not merged.
func (s Span) Cover(other Span) Span {
	if !s.IsValid() {
		return other
	}
	if !other.IsValid() || s.File != other.File {
		return s
	}
	if other.Start < s.Start {
		s.Start = other.Start
	}
	if other.End > s.End {
		s.End = other.End
	}
	return s
}

// Contains reports whether other lies fully inside s.
func (s Span) Contains(other Span) bool {
	return s.File == other.File && other.Start >= s.Start && other.End <= s.End
}
