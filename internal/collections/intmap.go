package collections

// IntIntMap：int32 键到 int32 值的映射，用于节点 ID 到瓦片编号等大规模计数
// 约束：Get 对不存在的键返回 0，与“存入 0”无法区分；需要区分时使用 Lookup
type IntIntMap struct {
	t table[int32]
}

// NewIntIntMap：默认容量与负载因子
func NewIntIntMap() *IntIntMap {
	m := &IntIntMap{}
	m.t.init(DefaultCapacity, DefaultLoadFactor)
	return m
}

// NewIntIntMapSize：指定初始容量与负载因子
// 异常：容量不是 2 的幂或负载因子不在 (0,1] 时返回错误，调用方应视为致命配置缺陷
func NewIntIntMapSize(capacity int, loadFactor float64) (*IntIntMap, error) {
	if err := checkParams(capacity, loadFactor); err != nil {
		return nil, err
	}
	m := &IntIntMap{}
	m.t.init(capacity, loadFactor)
	return m, nil
}

// Put：写入并返回旧值，无旧值时返回 0
func (m *IntIntMap) Put(key, value int32) int32 {
	old, _ := m.t.put(key, value)
	return old
}

func (m *IntIntMap) Get(key int32) int32 {
	v, _ := m.t.lookup(key)
	return v
}

func (m *IntIntMap) Lookup(key int32) (int32, bool) { return m.t.lookup(key) }

// Increment：累加并返回新值，键不存在时从 0 开始
func (m *IntIntMap) Increment(key, delta int32) int32 {
	i, ok := m.t.find(key)
	if ok {
		m.t.vals[i] += delta
		return m.t.vals[i]
	}
	m.t.put(key, delta)
	return delta
}

func (m *IntIntMap) Remove(key int32) (int32, bool) { return m.t.remove(key) }

func (m *IntIntMap) Len() int { return m.t.size }

// Capacity：当前桶数
func (m *IntIntMap) Capacity() int { return len(m.t.keys) }

// Range：无序遍历，fn 返回 false 时提前结束；遍历期间不得修改映射
func (m *IntIntMap) Range(fn func(key, value int32) bool) { m.t.each(fn) }

// IntObjMap：int32 键到任意值的映射，V 的零值表示不存在
type IntObjMap[V any] struct {
	t table[V]
}

func NewIntObjMap[V any]() *IntObjMap[V] {
	m := &IntObjMap[V]{}
	m.t.init(DefaultCapacity, DefaultLoadFactor)
	return m
}

func NewIntObjMapSize[V any](capacity int, loadFactor float64) (*IntObjMap[V], error) {
	if err := checkParams(capacity, loadFactor); err != nil {
		return nil, err
	}
	m := &IntObjMap[V]{}
	m.t.init(capacity, loadFactor)
	return m, nil
}

func (m *IntObjMap[V]) Put(key int32, value V) V {
	old, _ := m.t.put(key, value)
	return old
}

func (m *IntObjMap[V]) Get(key int32) V {
	v, _ := m.t.lookup(key)
	return v
}

func (m *IntObjMap[V]) Lookup(key int32) (V, bool) { return m.t.lookup(key) }

func (m *IntObjMap[V]) Remove(key int32) (V, bool) { return m.t.remove(key) }

func (m *IntObjMap[V]) Len() int { return m.t.size }

func (m *IntObjMap[V]) Range(fn func(key int32, value V) bool) { m.t.each(fn) }
