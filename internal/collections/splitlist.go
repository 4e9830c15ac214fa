package collections

// DefaultSegmentSize：单段元素数，单段 256KiB
const DefaultSegmentSize = 1 << 16

// SplitIntList：分段存储的 int32 追加列表
// 背景：单次分配不随总量增长；排空遍历可逐段释放内存，使数据无需在内存中同时存在两份
type SplitIntList struct {
	segSize  int
	segments [][]int32
	size     int
	drained  bool
}

// NewSplitIntList：segmentSize 小于 1 时使用 DefaultSegmentSize
func NewSplitIntList(segmentSize int) *SplitIntList {
	if segmentSize < 1 {
		segmentSize = DefaultSegmentSize
	}
	return &SplitIntList{segSize: segmentSize}
}

// Add：追加一个值
// 约束：列表被排空后不可再用，调用即 panic
func (l *SplitIntList) Add(v int32) {
	if l.drained {
		panic("collections: Add on drained SplitIntList")
	}
	n := len(l.segments)
	if n == 0 || len(l.segments[n-1]) == l.segSize {
		l.segments = append(l.segments, make([]int32, 0, l.segSize))
		n++
	}
	l.segments[n-1] = append(l.segments[n-1], v)
	l.size++
}

func (l *SplitIntList) Get(i int) int32 {
	if i < 0 || i >= l.size {
		panic("collections: SplitIntList index out of range")
	}
	return l.segments[i/l.segSize][i%l.segSize]
}

func (l *SplitIntList) Len() int { return l.size }

// Drained：是否已被排空遍历接管
func (l *SplitIntList) Drained() bool { return l.drained }

// IntIterator：顺序遍历器，Next 在结束时返回 false
type IntIterator struct {
	segments [][]int32
	segSize  int
	n        int
	pos      int
	drain    bool
}

// Iterator：不修改列表的可重复遍历
func (l *SplitIntList) Iterator() *IntIterator {
	return &IntIterator{segments: l.segments, segSize: l.segSize, n: l.size}
}

// DrainingIterator：按插入顺序遍历并在每段读完后释放该段
// 约束：调用后列表立即变为空且不可再用，段的所有权转移给遍历器
func (l *SplitIntList) DrainingIterator() *IntIterator {
	it := &IntIterator{segments: l.segments, segSize: l.segSize, n: l.size, drain: true}
	l.segments = nil
	l.size = 0
	l.drained = true
	return it
}

func (it *IntIterator) Next() (int32, bool) {
	if it.pos >= it.n {
		it.segments = nil
		return 0, false
	}
	seg, off := it.pos/it.segSize, it.pos%it.segSize
	v := it.segments[seg][off]
	it.pos++
	if it.drain && (off == it.segSize-1 || it.pos == it.n) {
		it.segments[seg] = nil
	}
	return v, true
}

// Remaining：尚未读取的元素数
func (it *IntIterator) Remaining() int { return it.n - it.pos }
