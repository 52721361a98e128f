package ir

import (
	"fmt"
	"strings"
)

// FrameType specifies ROWS or RANGE for a window frame.
type FrameType int

const (
	FrameRows FrameType = iota
	FrameRange
)

func (t FrameType) String() string {
	if t == FrameRange {
		return "RANGE"
	}
	return "ROWS"
}

// BoundType specifies a window frame boundary. The constants are ordered from
// the earliest possible bound to the latest, so frame validity is a simple
// comparison.
type BoundType int

const (
	BoundUnboundedPreceding BoundType = iota
	BoundPreceding
	BoundCurrentRow
	BoundFollowing
	BoundUnboundedFollowing
)

// FrameBound describes a single frame boundary. Offset is only meaningful for
// BoundPreceding and BoundFollowing.
type FrameBound struct {
	Type   BoundType
	Offset int64
}

func (b FrameBound) String() string {
	switch b.Type {
	case BoundUnboundedPreceding:
		return "UNBOUNDED PRECEDING"
	case BoundPreceding:
		return fmt.Sprintf("%d PRECEDING", b.Offset)
	case BoundCurrentRow:
		return "CURRENT ROW"
	case BoundFollowing:
		return fmt.Sprintf("%d FOLLOWING", b.Offset)
	default:
		return "UNBOUNDED FOLLOWING"
	}
}

// WindowFrame describes a fully resolved frame clause. Both bounds are always
// present; the window normalization pass fills in defaults for windows built
// without an explicit frame.
type WindowFrame struct {
	Type  FrameType
	Start FrameBound
	End   FrameBound
}

func (f WindowFrame) String() string {
	return fmt.Sprintf("%s BETWEEN %s AND %s", f.Type, f.Start, f.End)
}

// dumpString renders the frame in the compact form used by plan dumps, e.g.
// "rows:unbounded_preceding:current_row" or "rows:3_preceding:0_following".
func (f WindowFrame) dumpString() string {
	return strings.ToLower(f.Type.String()) + ":" + f.Start.dumpString() + ":" + f.End.dumpString()
}

func (b FrameBound) dumpString() string {
	switch b.Type {
	case BoundUnboundedPreceding:
		return "unbounded_preceding"
	case BoundPreceding:
		return fmt.Sprintf("%d_preceding", b.Offset)
	case BoundCurrentRow:
		return "current_row"
	case BoundFollowing:
		return fmt.Sprintf("%d_following", b.Offset)
	default:
		return "unbounded_following"
	}
}

// valid reports whether the bounds are ordered and the offsets non-negative.
func (f WindowFrame) valid() bool {
	if f.Start.Type > f.End.Type {
		return false
	}
	for _, b := range []FrameBound{f.Start, f.End} {
		switch b.Type {
		case BoundPreceding, BoundFollowing:
			if b.Offset < 0 {
				return false
			}
		default:
			if b.Offset != 0 {
				return false
			}
		}
	}
	return true
}

// Frame bound helpers in the style of SQL frame syntax.

// UnboundedPreceding returns an UNBOUNDED PRECEDING frame bound.
func UnboundedPreceding() FrameBound {
	return FrameBound{Type: BoundUnboundedPreceding}
}

// Preceding returns an N PRECEDING frame bound.
func Preceding(n int64) FrameBound {
	return FrameBound{Type: BoundPreceding, Offset: n}
}

// CurrentRow returns a CURRENT ROW frame bound.
func CurrentRow() FrameBound {
	return FrameBound{Type: BoundCurrentRow}
}

// Following returns an N FOLLOWING frame bound.
func Following(n int64) FrameBound {
	return FrameBound{Type: BoundFollowing, Offset: n}
}

// UnboundedFollowing returns an UNBOUNDED FOLLOWING frame bound.
func UnboundedFollowing() FrameBound {
	return FrameBound{Type: BoundUnboundedFollowing}
}

// RowsBetween returns a ROWS frame with the given bounds.
func RowsBetween(start, end FrameBound) *WindowFrame {
	return &WindowFrame{Type: FrameRows, Start: start, End: end}
}

// RangeBetween returns a RANGE frame with the given bounds.
func RangeBetween(start, end FrameBound) *WindowFrame {
	return &WindowFrame{Type: FrameRange, Start: start, End: end}
}
