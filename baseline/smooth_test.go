package baseline

import (
	"math"
	"testing"
)

func TestLowPassConstant(t *testing.T) {
	x := make([]float64, 50)
	for i := range x {
		x[i] = 3.5
	}

	out, err := LowPass(x, 0.5, 5)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out {
		if v != 3.5 {
			t.Fatalf("constant signal changed at %d: %v", i, v)
		}
	}
}

func TestLowPassKeepsApex(t *testing.T) {
	const n = 600
	const apex = 300
	x := make([]float64, n)
	for i := range x {
		d := float64(i-apex) / 20
		x[i] = 50 * math.Exp(-d*d/2)
		if i%2 == 0 {
			x[i] += 1
		} else {
			x[i] -= 1
		}
	}

	out, err := LowPass(x, 0.5, 5)
	if err != nil {
		t.Fatal(err)
	}

	best := 0
	for i := range out {
		if out[i] > out[best] {
			best = i
		}
	}
	if best < apex-1 || best > apex+1 {
		t.Errorf("apex moved from %d to %d", apex, best)
	}

	// The alternating component is far above the cutoff.
	for i := 100; i < 200; i++ {
		d := float64(i-apex) / 20
		smooth := 50 * math.Exp(-d*d/2)
		if math.Abs(out[i]-smooth) > 0.5 {
			t.Errorf("high-frequency component survived at %d: %v vs %v", i, out[i], smooth)
			break
		}
	}
}

func TestLowPassRejectsInvalidCutoff(t *testing.T) {
	if _, err := LowPass([]float64{1, 2, 3}, 5, 5); err == nil {
		t.Errorf("expected an error for a cutoff above the Nyquist frequency")
	}
	if _, err := LowPass([]float64{1, 2, 3}, 0.5, 0); err == nil {
		t.Errorf("expected an error for a zero sample rate")
	}
}
