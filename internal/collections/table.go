// 包 collections：面向海量节点的原始整型容器，避免逐元素装箱带来的内存放大
package collections

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

const (
	DefaultCapacity   = 16
	DefaultLoadFactor = 0.75
)

var (
	ErrInvalidCapacity   = errors.New("capacity must be a positive power of two")
	ErrInvalidLoadFactor = errors.New("load factor must be in (0,1]")
)

// table：开放寻址哈希表，线性探测，桶数为 2 的幂
// 约束：占用位图与键数组分离，0 可以作为合法键与值保存；表永远不会被填满，探测必然终止
type table[V any] struct {
	keys       []int32
	vals       []V
	used       []uint64
	size       int
	mask       int
	limit      int
	loadFactor float64
}

func checkParams(capacity int, loadFactor float64) error {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	if math.IsNaN(loadFactor) || loadFactor <= 0 || loadFactor > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidLoadFactor, loadFactor)
	}
	return nil
}

func (t *table[V]) init(capacity int, loadFactor float64) {
	t.keys = make([]int32, capacity)
	t.vals = make([]V, capacity)
	t.used = make([]uint64, (capacity+63)/64)
	t.mask = capacity - 1
	t.loadFactor = loadFactor
	t.limit = int(float64(capacity) * loadFactor)
	if t.limit > capacity-1 {
		t.limit = capacity - 1
	}
}

// hash32：murmur3 fmix32，打散连续节点 ID
func hash32(k int32) int {
	h := uint32(k)
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return int(h)
}

func (t *table[V]) isUsed(i int) bool { return t.used[i>>6]&(1<<(uint(i)&63)) != 0 }
func (t *table[V]) setUsed(i int)     { t.used[i>>6] |= 1 << (uint(i) & 63) }
func (t *table[V]) clearUsed(i int)   { t.used[i>>6] &^= 1 << (uint(i) & 63) }

// find：返回键所在槽位；未命中时返回探测链末端的空槽位
func (t *table[V]) find(k int32) (int, bool) {
	i := hash32(k) & t.mask
	for t.isUsed(i) {
		if t.keys[i] == k {
			return i, true
		}
		i = (i + 1) & t.mask
	}
	return i, false
}

func (t *table[V]) lookup(k int32) (V, bool) {
	i, ok := t.find(k)
	if !ok {
		var zero V
		return zero, false
	}
	return t.vals[i], true
}

func (t *table[V]) put(k int32, v V) (V, bool) {
	i, ok := t.find(k)
	if ok {
		old := t.vals[i]
		t.vals[i] = v
		return old, true
	}
	t.keys[i] = k
	t.vals[i] = v
	t.setUsed(i)
	t.size++
	if t.size > t.limit {
		t.grow()
	}
	var zero V
	return zero, false
}

// grow：容量翻倍并重新散列全部条目
func (t *table[V]) grow() {
	oldKeys, oldVals, oldUsed := t.keys, t.vals, t.used
	t.init(len(oldKeys)*2, t.loadFactor)
	for w, word := range oldUsed {
		for word != 0 {
			b := bits.TrailingZeros64(word)
			word &= word - 1
			j := w*64 + b
			i, _ := t.find(oldKeys[j])
			t.keys[i] = oldKeys[j]
			t.vals[i] = oldVals[j]
			t.setUsed(i)
		}
	}
}

// remove：删除后向后移位回填，保持线性探测链连续，不使用墓碑
func (t *table[V]) remove(k int32) (V, bool) {
	i, ok := t.find(k)
	var zero V
	if !ok {
		return zero, false
	}
	old := t.vals[i]
	j := i
	for {
		j = (j + 1) & t.mask
		if !t.isUsed(j) {
			break
		}
		h := hash32(t.keys[j]) & t.mask
		if i <= j {
			if i < h && h <= j {
				continue
			}
		} else if i < h || h <= j {
			continue
		}
		t.keys[i] = t.keys[j]
		t.vals[i] = t.vals[j]
		i = j
	}
	t.clearUsed(i)
	t.vals[i] = zero
	t.size--
	return old, true
}

func (t *table[V]) each(fn func(k int32, v V) bool) {
	for w, word := range t.used {
		for word != 0 {
			b := bits.TrailingZeros64(word)
			word &= word - 1
			j := w*64 + b
			if !fn(t.keys[j], t.vals[j]) {
				return
			}
		}
	}
}
