package collections

import (
	"errors"
	"strconv"
	"testing"
)

func TestNewIntIntMapSizeRejectsBadParams(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		lf       float64
		want     error
	}{
		{"not power of two", 123, 0.5, ErrInvalidCapacity},
		{"zero capacity", 0, 0.5, ErrInvalidCapacity},
		{"negative capacity", -16, 0.5, ErrInvalidCapacity},
		{"zero load factor", 64, 0, ErrInvalidLoadFactor},
		{"load factor above one", 64, 1.5, ErrInvalidLoadFactor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewIntIntMapSize(tt.capacity, tt.lf); !errors.Is(err, tt.want) {
				t.Errorf("NewIntIntMapSize() error = %v, want %v", err, tt.want)
			}
			if _, err := NewIntObjMapSize[string](tt.capacity, tt.lf); !errors.Is(err, tt.want) {
				t.Errorf("NewIntObjMapSize() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func newIntIntMaps(t *testing.T) map[string]*IntIntMap {
	t.Helper()
	out := map[string]*IntIntMap{"default": NewIntIntMap()}
	for _, c := range []int{64, 1024} {
		m, err := NewIntIntMapSize(c, 0.7)
		if err != nil {
			t.Fatalf("NewIntIntMapSize(%d) error = %v", c, err)
		}
		out[strconv.Itoa(c)] = m
	}
	full, err := NewIntIntMapSize(1, 1)
	if err != nil {
		t.Fatalf("NewIntIntMapSize(1, 1) error = %v", err)
	}
	out["load factor one"] = full
	return out
}

func TestIntIntMapPutGet(t *testing.T) {
	for name, m := range newIntIntMaps(t) {
		t.Run(name, func(t *testing.T) {
			for i := int32(1); i < 1000; i++ {
				if old := m.Put(i, i); old != 0 {
					t.Fatalf("Put(%d) = %d, want 0", i, old)
				}
				if m.Len() != int(i) {
					t.Fatalf("Len() = %d, want %d", m.Len(), i)
				}
			}
			for i := int32(1); i < 1000; i++ {
				if got := m.Get(i); got != i {
					t.Errorf("Get(%d) = %d, want %d", i, got, i)
				}
			}
			for i := int32(1000); i < 2000; i++ {
				if got := m.Get(i); got != 0 {
					t.Errorf("Get(%d) = %d, want 0", i, got)
				}
			}
			for i := int32(-2000); i < -1000; i++ {
				if got := m.Get(i); got != 0 {
					t.Errorf("Get(%d) = %d, want 0", i, got)
				}
			}
			if old := m.Put(123456, 999); old != 0 {
				t.Errorf("Put(123456, 999) = %d, want 0", old)
			}
			if old := m.Put(123456, 888); old != 999 {
				t.Errorf("Put(123456, 888) = %d, want 999", old)
			}
			if got := m.Get(123456); got != 888 {
				t.Errorf("Get(123456) = %d, want 888", got)
			}
		})
	}
}

func TestIntIntMapLookupDistinguishesZero(t *testing.T) {
	m := NewIntIntMap()
	m.Put(0, 0)
	m.Put(7, 0)
	if v, ok := m.Lookup(0); !ok || v != 0 {
		t.Errorf("Lookup(0) = %d, %v, want 0, true", v, ok)
	}
	if v, ok := m.Lookup(7); !ok || v != 0 {
		t.Errorf("Lookup(7) = %d, %v, want 0, true", v, ok)
	}
	if _, ok := m.Lookup(8); ok {
		t.Errorf("Lookup(8) found, want absent")
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
}

func TestIntIntMapRemoveKeepsProbeChains(t *testing.T) {
	m, err := NewIntIntMapSize(16, 1)
	if err != nil {
		t.Fatal(err)
	}
	// 反复插入删除，使表长期处于接近满载状态
	for round := 0; round < 50; round++ {
		base := int32(round * 1000)
		for i := int32(0); i < 15; i++ {
			m.Put(base+i, i+1)
		}
		for i := int32(0); i < 15; i += 2 {
			if v, ok := m.Remove(base + i); !ok || v != i+1 {
				t.Fatalf("Remove(%d) = %d, %v, want %d, true", base+i, v, ok, i+1)
			}
		}
		for i := int32(1); i < 15; i += 2 {
			if got := m.Get(base + i); got != i+1 {
				t.Fatalf("round %d: Get(%d) = %d, want %d", round, base+i, got, i+1)
			}
		}
		for i := int32(1); i < 15; i += 2 {
			m.Remove(base + i)
		}
		if m.Len() != 0 {
			t.Fatalf("round %d: Len() = %d, want 0", round, m.Len())
		}
	}
	if _, ok := m.Remove(42); ok {
		t.Errorf("Remove(42) on empty map reported found")
	}
}

func TestIntIntMapManyEntries(t *testing.T) {
	n := int32(3_000_000)
	if testing.Short() {
		n = 100_000
	}
	m := NewIntIntMap()
	for i := int32(0); i < n; i++ {
		m.Put(i*7-n, i)
	}
	if m.Len() != int(n) {
		t.Fatalf("Len() = %d, want %d", m.Len(), n)
	}
	for i := int32(0); i < n; i++ {
		if v, ok := m.Lookup(i*7 - n); !ok || v != i {
			t.Fatalf("Lookup(%d) = %d, %v, want %d, true", i*7-n, v, ok, i)
		}
	}
	if m.Capacity()&(m.Capacity()-1) != 0 {
		t.Errorf("Capacity() = %d, want power of two", m.Capacity())
	}
}

func TestIntIntMapIncrementAndRange(t *testing.T) {
	m := NewIntIntMap()
	for i := 0; i < 100; i++ {
		m.Increment(int32(i%10), 1)
	}
	sum := int32(0)
	m.Range(func(k, v int32) bool {
		if v != 10 {
			t.Errorf("count[%d] = %d, want 10", k, v)
		}
		sum += v
		return true
	})
	if sum != 100 {
		t.Errorf("sum = %d, want 100", sum)
	}
}

func TestIntObjMap(t *testing.T) {
	m, err := NewIntObjMapSize[*string](64, 0.7)
	if err != nil {
		t.Fatal(err)
	}
	for i := int32(1); i < 1000; i++ {
		s := strconv.Itoa(int(i))
		if old := m.Put(i, &s); old != nil {
			t.Fatalf("Put(%d) = %v, want nil", i, *old)
		}
		if m.Len() != int(i) {
			t.Fatalf("Len() = %d, want %d", m.Len(), i)
		}
	}
	for i := int32(1); i < 1000; i++ {
		if got := m.Get(i); got == nil || *got != strconv.Itoa(int(i)) {
			t.Errorf("Get(%d) = %v, want %d", i, got, i)
		}
	}
	for i := int32(1000); i < 2000; i++ {
		if got := m.Get(i); got != nil {
			t.Errorf("Get(%d) = %v, want nil", i, *got)
		}
	}
	a, b := "999", "888"
	m.Put(123456, &a)
	if old := m.Put(123456, &b); old != &a {
		t.Errorf("Put(123456) returned %v, want previous value", old)
	}
	if v, ok := m.Remove(123456); !ok || v != &b {
		t.Errorf("Remove(123456) = %v, %v", v, ok)
	}
}
