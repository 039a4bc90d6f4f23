package runner

import "fmt"

// Range is an inclusive range of block numbers or indexes.
type Range struct {
	From uint64
	To   uint64
}

// SplitRange splits [from, to] into consecutive ranges of at most size items.
func SplitRange(from, to, size uint64) ([]Range, error) {
	if size == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("range end %d is before start %d", to, from)
	}

	ranges := make([]Range, 0, (to-from)/size+1)
	for start := from; ; start += size {
		end := to
		if to-start >= size {
			end = start + size - 1
		}
		ranges = append(ranges, Range{From: start, To: end})
		if end == to {
			return ranges, nil
		}
	}
}
