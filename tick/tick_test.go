package tick

import "testing"

func mustTick(t *testing.T, perUnit uint64) Tick {
	t.Helper()
	tk, err := New(perUnit)
	if err != nil {
		t.Fatalf("New(%d): %v", perUnit, err)
	}
	return tk
}

func TestDecodeExactCases(t *testing.T) {
	cases := []struct {
		perUnit uint64
		input   string
		want    Unit
	}{
		{2, "0.5", 1},
		{10, "0.5", 5},
		{2000, "0.002", 4},
		{10, "3.5", 35},
		{20, "6.35", 127},
		{20, "6.3500000", 127},
	}
	for _, c := range cases {
		tk := mustTick(t, c.perUnit)
		got, err := tk.Decode(c.input)
		if err != nil {
			t.Fatalf("Tick(%d).Decode(%q): unexpected error: %v", c.perUnit, c.input, err)
		}
		if got != c.want {
			t.Errorf("Tick(%d).Decode(%q) = %d, want %d", c.perUnit, c.input, got, c.want)
		}
	}
}

func TestDecodeRejectsNonIntegral(t *testing.T) {
	tk := mustTick(t, 10)
	if _, err := tk.Decode("5.11"); err == nil {
		t.Fatal("expected Decode(\"5.11\") to fail for Tick(10)")
	}
}

func TestDecodePathologicalInputsAreBugCompatible(t *testing.T) {
	tk := mustTick(t, 10)

	if got, err := tk.Decode("abc"); err != nil || got != 0 {
		t.Errorf("Decode(\"abc\") = (%d, %v), want (0, nil)", got, err)
	}
	if got, err := tk.Decode("abc.5"); err != nil || got != 5 {
		t.Errorf("Decode(\"abc.5\") = (%d, %v), want (5, nil)", got, err)
	}
	if got, err := tk.Decode("5.abc"); err != nil || got != 50 {
		t.Errorf("Decode(\"5.abc\") = (%d, %v), want (50, nil)", got, err)
	}
}

func TestDecodeEmptyPartsHandled(t *testing.T) {
	tk := mustTick(t, 10)

	if got, err := tk.Decode("1."); err != nil || got != 10 {
		t.Errorf("Decode(\"1.\") = (%d, %v), want (10, nil)", got, err)
	}
	if got, err := tk.Decode(".5"); err != nil || got != 5 {
		t.Errorf("Decode(\".5\") = (%d, %v), want (5, nil)", got, err)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tk := mustTick(t, 20)
	for ticks := Unit(0); ticks < 500; ticks++ {
		s, err := tk.Encode(ticks)
		if err != nil {
			t.Fatalf("Encode(%d): %v", ticks, err)
		}
		got, err := tk.Decode(s)
		if err != nil {
			t.Fatalf("Decode(Encode(%d)=%q): %v", ticks, s, err)
		}
		if got != ticks {
			t.Errorf("round-trip mismatch: ticks=%d encoded=%q decoded=%d", ticks, s, got)
		}
	}
}

func TestEncodeFailsWhenNotDivisorOfPowerOfTen(t *testing.T) {
	tk := mustTick(t, 3)
	if _, err := tk.Encode(7); err == nil {
		t.Fatal("expected Encode to fail for ticksPerUnit=3")
	}
}
