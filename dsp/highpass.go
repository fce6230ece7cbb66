// Package dsp holds the signal processing applied between capture and
// transcription.
package dsp

import (
	"errors"
	"fmt"
	"math"

	"earshot/audio"
)

const DefaultCutoffHz = 1000.0

var (
	ErrProcessing = errors.New("processing error")
	ErrTooShort   = fmt.Errorf("%w: signal too short for zero-phase filtering", ErrProcessing)
)

// Coefficients are the transfer function of a first-order IIR filter,
// normalized so that A[0] == 1.
type Coefficients struct {
	B [2]float64
	A [2]float64
}

// PadLen is the number of samples of odd extension added at each end
// before forward/backward filtering.
func (c Coefficients) PadLen() int {
	return 3 * max(len(c.B), len(c.A))
}

// zi returns the filter state that corresponds to the steady-state
// response to a unit step.
func (c Coefficients) zi() float64 {
	return (c.B[1] - c.A[1]*c.B[0]) / (1 + c.A[1])
}

// lfilter runs the filter in transposed direct form II starting from z.
func (c Coefficients) lfilter(x []float64, z float64) []float64 {
	y := make([]float64, len(x))
	for n, v := range x {
		y[n] = c.B[0]*v + z
		z = c.B[1]*v - c.A[1]*y[n]
	}
	return y
}

// FiltFilt filters x forwards and then backwards, cancelling the phase
// response of the filter. x is padded with an odd extension of PadLen
// samples on each side and each pass starts from steady-state conditions.
func (c Coefficients) FiltFilt(x []float64) ([]float64, error) {
	pad := c.PadLen()
	n := len(x)
	if n <= pad {
		return nil, fmt.Errorf("%w: %d samples, need more than %d", ErrTooShort, n, pad)
	}

	ext := make([]float64, 0, n+2*pad)
	for i := pad; i > 0; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := n - 2; i > n-2-pad; i-- {
		ext = append(ext, 2*x[n-1]-x[i])
	}

	zi := c.zi()
	y := c.lfilter(ext, zi*ext[0])
	reverse(y)
	y = c.lfilter(y, zi*y[0])
	reverse(y)
	return y[pad : pad+n], nil
}

func reverse(s []float64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// ButterworthHighPass designs a first-order Butterworth high-pass filter
// with the bilinear transform.
func ButterworthHighPass(cutoffHz float64, sampleRate int) (Coefficients, error) {
	nyquist := float64(sampleRate) / 2
	if sampleRate <= 0 || cutoffHz <= 0 || cutoffHz >= nyquist || math.IsNaN(cutoffHz) {
		return Coefficients{}, fmt.Errorf("%w: cutoff %g Hz must be within (0, %g) Hz",
			ErrProcessing, cutoffHz, nyquist)
	}
	k := math.Tan(math.Pi * cutoffHz / float64(sampleRate))
	g := 1 / (1 + k)
	return Coefficients{
		B: [2]float64{g, -g},
		A: [2]float64{1, (k - 1) / (k + 1)},
	}, nil
}

// HighPass attenuates content below CutoffHz without shifting the phase of
// what remains.
type HighPass struct {
	CutoffHz float64
}

// Apply returns a new buffer with every channel filtered independently.
// Results are rounded to the nearest integer and saturated to the range of
// the buffer's sample width.
func (h HighPass) Apply(buf *audio.Buffer) (*audio.Buffer, error) {
	if err := buf.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessing, err)
	}
	coef, err := ButterworthHighPass(h.CutoffHz, buf.SampleRate)
	if err != nil {
		return nil, err
	}

	frames := buf.Frames()
	channels := buf.Channels
	samples := buf.Samples()
	out := make([]int, len(samples))
	x := make([]float64, frames)

	for ch := 0; ch < channels; ch++ {
		for f := 0; f < frames; f++ {
			x[f] = float64(samples[f*channels+ch])
		}
		y, err := coef.FiltFilt(x)
		if err != nil {
			return nil, err
		}
		for f, v := range y {
			out[f*channels+ch] = int(math.Round(v))
		}
	}

	return audio.NewBufferFromSamples(out, channels, buf.SampleWidth, buf.SampleRate), nil
}
