package strip

import "github.com/pkg/errors"

// SegmentCount is the number of physical strips driven by the board.
const SegmentCount = 3

// Segment is one physically wired group of pixels with its own data line.
type Segment struct {
	Name  string
	Count int
}

// Layout partitions the logical pixel array into contiguous segments.
type Layout [SegmentCount]Segment

// DefaultLayout is the Elektra board: inner ring, outer ring and edge.
var DefaultLayout = Layout{
	{Name: "inner", Count: 4},
	{Name: "outer", Count: 8},
	{Name: "edge", Count: 8},
}

// Capacity is the total number of pixels the layout can transmit.
func (l Layout) Capacity() int {
	n := 0
	for _, s := range l {
		n += s.Count
	}
	return n
}

// Bounds returns the half-open pixel index range [lo, hi) of segment i.
func (l Layout) Bounds(i int) (lo, hi int) {
	for j := 0; j < i; j++ {
		lo += l[j].Count
	}
	return lo, lo + l[i].Count
}

func (l Layout) Validate() error {
	for i, s := range l {
		if s.Count < 0 {
			return errors.Errorf("strip: segment %d (%s): negative count %d", i, s.Name, s.Count)
		}
	}
	if l.Capacity() == 0 {
		return errors.New("strip: layout has no pixels")
	}
	return nil
}
