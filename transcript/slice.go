package transcript

import (
	"fmt"
	"sort"

	"tlsn-notary/shared"
)

// Slice is a contiguous byte range within one direction of a transcript.
type Slice struct {
	Direction Direction `json:"direction"`
	Start     int       `json:"start"`
	Length    int       `json:"length"`
}

// NewSlice is shorthand for a slice given as [start, end).
func NewSlice(dir Direction, start, end int) Slice {
	return Slice{Direction: dir, Start: start, Length: end - start}
}

// End returns the exclusive end offset.
func (s Slice) End() int {
	return s.Start + s.Length
}

func (s Slice) String() string {
	return fmt.Sprintf("%s[%d..%d)", s.Direction, s.Start, s.End())
}

// Validate checks 0 <= start, 0 < length and start+length <= total.
// Empty slices are rejected: they commit to nothing.
func (s Slice) Validate(total int) error {
	if !s.Direction.Valid() {
		return shared.Errorf(shared.KindRange, "validate slice", "invalid direction %d", s.Direction)
	}
	if s.Start < 0 || s.Length <= 0 {
		return shared.Errorf(shared.KindRange, "validate slice", "%s is empty or negative", s)
	}
	// start+length may overflow for hostile input
	if s.Length > total || s.Start > total-s.Length {
		return shared.Errorf(shared.KindRange, "validate slice", "%s exceeds %s length %d", s, s.Direction, total)
	}
	return nil
}

// Overlaps reports whether a and b share at least one byte.
func (s Slice) Overlaps(o Slice) bool {
	return s.Direction == o.Direction && s.Start < o.End() && o.Start < s.End()
}

// Merge sorts slices by direction then start and coalesces overlapping or
// adjacent ones. Empty slices are dropped.
func Merge(slices []Slice) []Slice {
	in := make([]Slice, 0, len(slices))
	for _, s := range slices {
		if s.Length > 0 {
			in = append(in, s)
		}
	}
	sort.Slice(in, func(i, j int) bool {
		if in[i].Direction != in[j].Direction {
			return in[i].Direction < in[j].Direction
		}
		return in[i].Start < in[j].Start
	})

	var out []Slice
	for _, s := range in {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.Direction == s.Direction && s.Start <= last.End() {
				if s.End() > last.End() {
					last.Length = s.End() - last.Start
				}
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// Invert returns the parts of [0, total) in direction dir not covered by
// any of the given slices. Slices of other directions are ignored.
func Invert(slices []Slice, dir Direction, total int) ([]Slice, error) {
	var own []Slice
	for _, s := range slices {
		if s.Direction != dir {
			continue
		}
		if err := s.Validate(total); err != nil {
			return nil, err
		}
		own = append(own, s)
	}

	var out []Slice
	pos := 0
	for _, s := range Merge(own) {
		if s.Start > pos {
			out = append(out, NewSlice(dir, pos, s.Start))
		}
		pos = s.End()
	}
	if pos < total {
		out = append(out, NewSlice(dir, pos, total))
	}
	return out, nil
}
