package ras

import "testing"

func TestChipRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		chip   ChipSpec
		inside RowCol
	}{
		{"origin at zero", NewChipSpec(RowCol{0, 0}, 10, 10), RowCol{3, 4}},
		{"offset origin", NewChipSpec(RowCol{5, 7}, 10, 10), RowCol{0, 0}},
		{"offset origin far corner", NewChipSpec(RowCol{5, 7}, 10, 10), RowCol{9, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			full := tt.chip.FullRC(tt.inside)
			back, ok := tt.chip.ChipRC(full)
			if !ok {
				t.Fatalf("ChipRC(%v) reported out of bounds", full)
			}
			if back != tt.inside {
				t.Errorf("round trip mismatch: got %v, want %v", back, tt.inside)
			}
		})
	}
}

func TestChipRCOutOfBounds(t *testing.T) {
	chip := NewChipSpec(RowCol{5, 5}, 4, 4)
	if _, ok := chip.ChipRC(RowCol{0, 0}); ok {
		t.Errorf("expected out-of-bounds full coordinate to fail")
	}
	if _, ok := chip.ChipRC(RowCol{20, 20}); ok {
		t.Errorf("expected out-of-bounds full coordinate to fail")
	}
}

func TestFitsIn(t *testing.T) {
	chip := NewChipSpec(RowCol{5, 5}, 4, 4)
	if !chip.FitsIn(9, 9) {
		t.Errorf("expected chip to fit exactly")
	}
	if chip.FitsIn(8, 9) {
		t.Errorf("expected chip to not fit when short by one row")
	}
}

func TestCenteredChipClampsToImage(t *testing.T) {
	chip := CenteredChip(RowCol{1, 1}, 10, 10, 20, 20)
	if chip.Origin.Row != 0 || chip.Origin.Col != 0 {
		t.Errorf("expected clamp to top-left corner, got %+v", chip.Origin)
	}
	if !chip.FitsIn(20, 20) {
		t.Errorf("clamped chip must still fit in image")
	}
}

func TestCropExtractsSubregion(t *testing.T) {
	data := make([]float32, 16)
	for i := range data {
		data[i] = float32(i)
	}
	full := NewRasterView(data, 4, 4)
	chip := NewChipSpec(RowCol{1, 1}, 2, 2)
	cropped := chip.Crop(full)

	want := [][]float32{{5, 6}, {9, 10}}
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			v, ok := cropped.At(RowCol{r, c})
			if !ok || v != want[r][c] {
				t.Errorf("cropped[%d][%d] = %v, want %v", r, c, v, want[r][c])
			}
		}
	}
}
