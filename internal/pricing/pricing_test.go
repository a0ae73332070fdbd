package pricing

import "testing"

func TestDiscountedUnitCents(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		unitCents int
		pct       int
		want      int
	}{
		{"no discount", 10000, 0, 10000},
		{"ten percent", 10000, 10, 9000},
		{"rounds half up", 999, 15, 849}, // 849.15 -> 849
		{"rounds up at half", 1050, 5, 998},
		{"full discount", 10000, 100, 0},
		{"negative clamps", 10000, -5, 10000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DiscountedUnitCents(tc.unitCents, tc.pct); got != tc.want {
				t.Fatalf("DiscountedUnitCents(%d, %d) = %d, want %d", tc.unitCents, tc.pct, got, tc.want)
			}
		})
	}
}

func TestPercentOfCents(t *testing.T) {
	t.Parallel()

	if got := PercentOfCents(18000, 20); got != 3600 {
		t.Fatalf("expected 3600, got %d", got)
	}
	if got := PercentOfCents(0, 20); got != 0 {
		t.Fatalf("expected 0 for empty amount, got %d", got)
	}
	if got := PercentOfCents(101, 50); got != 51 {
		t.Fatalf("expected half-up rounding to 51, got %d", got)
	}
}
