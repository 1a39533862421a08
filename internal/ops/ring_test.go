package ops

import "testing"

func TestRingAntipodalSymmetry(t *testing.T) {
	for halfSize := 0; halfSize <= 8; halfSize++ {
		g := NewRingGeometry(halfSize)
		if len(g.Offsets)%2 != 0 {
			t.Fatalf("half_size=%d: offset list has odd length %d", halfSize, len(g.Offsets))
		}
		n := g.HalfLen()
		for i := 0; i < n; i++ {
			a, b := g.Offsets[i], g.Offsets[i+n]
			if a.DR != -b.DR || a.DC != -b.DC {
				t.Errorf("half_size=%d: offset[%d]=%v is not the antipode of offset[%d]=%v", halfSize, i, a, i+n, b)
			}
		}
	}
}

func TestRingSmallShapes(t *testing.T) {
	tests := []struct {
		halfSize int
		wantLen  int
	}{
		{0, 4},
		{1, 8},
		{2, 12},
	}
	for _, tt := range tests {
		g := NewRingGeometry(tt.halfSize)
		if len(g.Offsets) != tt.wantLen {
			t.Errorf("half_size=%d: got %d offsets, want %d (%v)", tt.halfSize, len(g.Offsets), tt.wantLen, g.Offsets)
		}
	}
}

func TestRingOffsetsUnique(t *testing.T) {
	for halfSize := 0; halfSize <= 6; halfSize++ {
		g := NewRingGeometry(halfSize)
		seen := make(map[RelRC]bool, len(g.Offsets))
		for _, off := range g.Offsets {
			if seen[off] {
				t.Errorf("half_size=%d: duplicate offset %v", halfSize, off)
			}
			seen[off] = true
		}
	}
}
