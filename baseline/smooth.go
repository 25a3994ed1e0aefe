package baseline

import (
	"fmt"
	"math"

	"github.com/jfcg/butter"
)

// LowPass applies a first-order Butterworth low-pass filter forwards and then
// backwards over the signal, which cancels the phase lag a single pass would
// introduce and so leaves apex positions where they were. cutoffHz must lie
// strictly between 0 and the Nyquist frequency of sampleHz.
func LowPass(signal []float64, cutoffHz, sampleHz float64) ([]float64, error) {
	if sampleHz <= 0 {
		return nil, fmt.Errorf("invalid sample rate %f Hz", sampleHz)
	}

	wc := 2.0 * math.Pi * cutoffHz / sampleHz
	forward := butter.NewLowPass1(wc)
	backward := butter.NewLowPass1(wc)
	if forward == nil || backward == nil {
		return nil, fmt.Errorf("invalid low-pass filter (attempted wc=%f for %f Hz at %f Hz sampling, but expect .0001 < wc && wc < 3.1415)", wc, cutoffHz, sampleHz)
	}

	out := make([]float64, len(signal))
	if len(signal) == 0 {
		return out, nil
	}

	// Each pass runs on the signal relative to its first sample, so the
	// filter starts settled instead of stepping up from zero.
	start := signal[0]
	for i, v := range signal {
		out[i] = forward.Next(v-start) + start
	}

	end := out[len(out)-1]
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = backward.Next(out[i]-end) + end
	}

	return out, nil
}
