package geo

import "testing"

func TestToMapUnit(t *testing.T) {
	tests := []struct {
		deg  float64
		want int
	}{
		{0, 0},
		{180, 0x800000},
		{-180, -0x800000},
		{90, 0x400000},
		{45, 0x200000},
		{-0.00001, 0},
	}
	for _, tt := range tests {
		if got := ToMapUnit(tt.deg); got != tt.want {
			t.Errorf("ToMapUnit(%v) = %d, want %d", tt.deg, got, tt.want)
		}
	}
	for _, u := range []int{-0x800000, -12345, 0, 1, 987654, 0x400000} {
		if got := ToMapUnit(ToDegrees(u)); got != u {
			t.Errorf("ToMapUnit(ToDegrees(%d)) = %d", u, got)
		}
	}
}

func TestAreaPredicates(t *testing.T) {
	a := Area{MinLat: 0, MinLon: 0, MaxLat: 100, MaxLon: 100}
	touching := Area{MinLat: 0, MinLon: 100, MaxLat: 100, MaxLon: 200}
	inside := Area{MinLat: 10, MinLon: 10, MaxLat: 20, MaxLon: 20}
	apart := Area{MinLat: 200, MinLon: 200, MaxLat: 300, MaxLon: 300}

	if !a.Contains(100, 100) || !a.Contains(0, 0) || a.Contains(101, 0) {
		t.Errorf("Contains() must be closed on all edges")
	}
	if !a.Intersects(touching) || a.Overlaps(touching) {
		t.Errorf("touching areas: Intersects() = %v, Overlaps() = %v", a.Intersects(touching), a.Overlaps(touching))
	}
	if !a.Overlaps(inside) || !a.ContainsArea(inside) {
		t.Errorf("inside area must overlap and be contained")
	}
	if a.Intersects(apart) {
		t.Errorf("disjoint areas reported as intersecting")
	}
	if u := a.Union(apart); u != (Area{0, 0, 300, 300}) {
		t.Errorf("Union() = %v", u)
	}
	if c := a.Expand(50).Clip(Area{-10, -10, 120, 120}); c != (Area{-10, -10, 120, 120}) {
		t.Errorf("Expand().Clip() = %v", c)
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		name string
		in   Area
		res  int
		want Area
	}{
		{
			name: "already aligned",
			in:   Area{0, 0, 4096, 4096},
			res:  13,
			want: Area{0, 0, 4096, 4096},
		},
		{
			name: "edges outward",
			in:   Area{1, -1, 2047, 2049},
			res:  13,
			want: Area{0, -2048, 4096, 6144},
		},
		{
			name: "odd cell count extends max",
			in:   Area{0, 0, 2048, 6144},
			res:  13,
			want: Area{0, 0, 4096, 8192},
		},
		{
			name: "extends min at planet edge",
			in:   Area{0x400000 - 2048, 0x800000 - 2048, 0x400000, 0x800000},
			res:  13,
			want: Area{0x400000 - 4096, 0x800000 - 4096, 0x400000, 0x800000},
		},
		{
			name: "single point",
			in:   Area{2048, 2048, 2048, 2048},
			res:  13,
			want: Area{2048, 2048, 6144, 6144},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Round(tt.res)
			if got != tt.want {
				t.Fatalf("Round() = %v, want %v", got, tt.want)
			}
			align := Alignment(tt.res)
			if !got.IsAligned(align) || got.Width()%(2*align) != 0 || got.Height()%(2*align) != 0 {
				t.Errorf("Round() = %v not aligned to %d", got, align)
			}
			if !got.ContainsArea(tt.in) {
				t.Errorf("Round() = %v does not contain %v", got, tt.in)
			}
		})
	}
}

func TestPlanetIsAligned(t *testing.T) {
	for res := 2; res <= MaxResolution; res++ {
		if r := Planet.Round(res); r != Planet {
			t.Errorf("Planet.Round(%d) = %v", res, r)
		}
	}
}

func TestBounds(t *testing.T) {
	var b Bounds
	if !b.Empty() {
		t.Fatalf("zero Bounds not empty")
	}
	b.Extend(10, -5)
	b.Extend(-3, 7)
	b.Extend(4, 4)
	if got := b.Area(); got != (Area{MinLat: -3, MinLon: -5, MaxLat: 10, MaxLon: 7}) {
		t.Errorf("Area() = %v", got)
	}
	if b.Count() != 3 {
		t.Errorf("Count() = %d, want 3", b.Count())
	}
}

func TestBoundRoundTrip(t *testing.T) {
	a := Area{MinLat: 2097152, MinLon: -4194304, MaxLat: 2129920, MaxLon: -4161536}
	if got := FromBound(a.Bound()); got != a {
		t.Errorf("FromBound(Bound()) = %v, want %v", got, a)
	}
}
