package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earshot/audio"
)

func TestButterworthHighPassCoefficients(t *testing.T) {
	t.Parallel()

	c, err := ButterworthHighPass(1000, 44100)
	require.NoError(t, err)
	assert.InDelta(t, 0.9333942197, c.B[0], 1e-9)
	assert.InDelta(t, -0.9333942197, c.B[1], 1e-9)
	assert.Equal(t, 1.0, c.A[0])
	assert.InDelta(t, -0.8667884395, c.A[1], 1e-9)
	assert.Equal(t, 6, c.PadLen())
}

func TestButterworthHighPassRejectsCutoff(t *testing.T) {
	t.Parallel()

	for _, cutoff := range []float64{0, -10, 22050, 30000, math.NaN()} {
		_, err := ButterworthHighPass(cutoff, 44100)
		require.ErrorIs(t, err, ErrProcessing, "cutoff %g", cutoff)
	}
}

func sineSamples(n int, freq, rate, amp float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	return x
}

// magnitude returns |H(e^jw)| of a first-order filter at freq.
func magnitude(c Coefficients, freq, rate float64) float64 {
	w := 2 * math.Pi * freq / rate
	num := complex(c.B[0], 0) + complex(c.B[1], 0)*complex(math.Cos(-w), math.Sin(-w))
	den := complex(c.A[0], 0) + complex(c.A[1], 0)*complex(math.Cos(-w), math.Sin(-w))
	r := num / den
	return math.Hypot(real(r), imag(r))
}

func TestFiltFiltIsZeroPhase(t *testing.T) {
	t.Parallel()

	const rate = 44100.0
	c, err := ButterworthHighPass(1000, rate)
	require.NoError(t, err)

	for _, freq := range []float64{500, 3000, 8000} {
		x := sineSamples(8820, freq, rate, 1000)
		y, err := c.FiltFilt(x)
		require.NoError(t, err)
		require.Len(t, y, len(x))

		// Away from the edges the output is the input scaled by |H|^2
		// with no delay.
		gain := math.Pow(magnitude(c, freq, rate), 2)
		for i := 2000; i < len(x)-2000; i++ {
			require.InDelta(t, gain*x[i], y[i], 1.0, "freq %g sample %d", freq, i)
		}
	}
}

func TestFiltFiltRemovesDC(t *testing.T) {
	t.Parallel()

	c, err := ButterworthHighPass(1000, 16000)
	require.NoError(t, err)

	x := make([]float64, 500)
	for i := range x {
		x[i] = 1200
	}
	y, err := c.FiltFilt(x)
	require.NoError(t, err)
	for i, v := range y {
		require.InDelta(t, 0, v, 1e-6, "sample %d", i)
	}
}

func TestFiltFiltTooShort(t *testing.T) {
	t.Parallel()

	c, err := ButterworthHighPass(1000, 44100)
	require.NoError(t, err)

	_, err = c.FiltFilt(make([]float64, 6))
	require.ErrorIs(t, err, ErrTooShort)
	require.ErrorIs(t, err, ErrProcessing)

	y, err := c.FiltFilt(make([]float64, 7))
	require.NoError(t, err)
	require.Len(t, y, 7)
}

func TestApplyFiltersChannelsIndependently(t *testing.T) {
	t.Parallel()

	const frames = 4000
	left := sineSamples(frames, 3000, 44100, 8000)
	samples := make([]int, frames*2)
	for i, v := range left {
		samples[2*i] = int(math.Round(v))
	}
	stereo := audio.NewBufferFromSamples(samples, 2, 2, 44100)
	original := append([]byte(nil), stereo.Data...)

	out, err := HighPass{CutoffHz: 1000}.Apply(stereo)
	require.NoError(t, err)
	require.Equal(t, original, stereo.Data, "input must not be modified")
	require.Equal(t, stereo.Frames(), out.Frames())
	require.Equal(t, 2, out.Channels)

	mono := make([]int, frames)
	for i := range mono {
		mono[i] = samples[2*i]
	}
	monoOut, err := HighPass{CutoffHz: 1000}.Apply(audio.NewBufferFromSamples(mono, 1, 2, 44100))
	require.NoError(t, err)

	got := out.Samples()
	want := monoOut.Samples()
	for i := 0; i < frames; i++ {
		require.Equal(t, want[i], got[2*i], "left frame %d", i)
		require.Zero(t, got[2*i+1], "right frame %d", i)
	}
}

func TestApplySaturates(t *testing.T) {
	t.Parallel()

	// A full-scale square wave overshoots after high-pass filtering.
	samples := make([]int, 2000)
	for i := range samples {
		if (i/100)%2 == 0 {
			samples[i] = 32767
		} else {
			samples[i] = -32768
		}
	}
	buf := audio.NewBufferFromSamples(samples, 1, 2, 44100)

	out, err := HighPass{CutoffHz: 1000}.Apply(buf)
	require.NoError(t, err)

	c, err := ButterworthHighPass(1000, 44100)
	require.NoError(t, err)
	x := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = float64(s)
	}
	y, err := c.FiltFilt(x)
	require.NoError(t, err)

	clipped := 0
	for i, got := range out.Samples() {
		want := min(max(int(math.Round(y[i])), -32768), 32767)
		require.Equal(t, want, got, "sample %d", i)
		if math.Abs(y[i]) > 32767 {
			clipped++
		}
	}
	require.Positive(t, clipped, "expected some samples to exceed the 16-bit range")
}

func TestApplyErrors(t *testing.T) {
	t.Parallel()

	short := audio.NewBufferFromSamples(make([]int, 6), 1, 2, 44100)
	_, err := HighPass{CutoffHz: 1000}.Apply(short)
	require.ErrorIs(t, err, ErrTooShort)

	ok := audio.NewBufferFromSamples(make([]int, 100), 1, 2, 8000)
	_, err = HighPass{CutoffHz: 4000}.Apply(ok)
	require.ErrorIs(t, err, ErrProcessing)

	_, err = HighPass{CutoffHz: 1000}.Apply(&audio.Buffer{Channels: 1, SampleWidth: 2, SampleRate: 8000, Data: []byte{1}})
	require.ErrorIs(t, err, ErrProcessing)
}
