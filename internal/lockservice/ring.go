package lockservice

// ringBuffer is a small power-of-two ring of int64 timestamps, adapted from
// the teacher's catrate package (github.com/joeycumines/go-catrate), which
// uses the same structure (there, generic over constraints.Ordered) to track
// recent rate-limited event timestamps. Here it tracks recent
// lock-acquire-attempt timestamps for a single key, purely as a diagnostic
// aid (surfacing contention on a hot entity); trimming it does not affect
// the correctness of Acquire/Release.
type ringBuffer struct {
	s    []int64
	r, w uint
}

func newRingBuffer(size int) *ringBuffer {
	if size <= 0 || size&(size-1) != 0 {
		panic("lockservice: ring: size must be a power of 2")
	}
	return &ringBuffer{s: make([]int64, size)}
}

func (x *ringBuffer) mask(val uint) uint {
	return val & (uint(len(x.s)) - 1)
}

func (x *ringBuffer) Len() int {
	return int(x.w - x.r)
}

func (x *ringBuffer) Insert(index int, value int64) {
	l := x.Len()
	if index < 0 || index > l {
		panic("lockservice: ring: insert: index out of range")
	}
	if l == len(x.s) {
		// full: drop the oldest entry to make room.
		x.r++
	}
	x.s[x.mask(x.w)] = value
	x.w++
}
