package transcode

import (
	"context"
	"math"

	"github.com/RyanBlaney/sonido-studio/algorithms/windowing"
	"github.com/RyanBlaney/sonido-studio/audioerr"
)

// kaiserBeta trades main-lobe width for ~90 dB stop-band rejection
const kaiserBeta = 8.6

// cancelCheckInterval is how many output samples are produced between
// cancellation checks
const cancelCheckInterval = 4096

// Resampler performs band-limited sample rate conversion with a
// Kaiser-windowed sinc kernel
type Resampler struct {
	halfTaps int
	window   *windowing.Kaiser
}

// NewResampler creates a resampler whose kernel spans halfTaps input samples
// on each side of the interpolation point (scaled up when decimating)
func NewResampler(halfTaps int) *Resampler {
	if halfTaps <= 0 {
		halfTaps = 32
	}
	return &Resampler{
		halfTaps: halfTaps,
		window:   windowing.NewKaiser(kaiserBeta),
	}
}

// Resample converts the signal to targetRate. A signal already at that rate is
// returned unchanged.
func (r *Resampler) Resample(ctx context.Context, signal *AudioSignal, targetRate int) (*AudioSignal, error) {
	const op = "transcode.Resampler.Resample"

	if targetRate <= 0 {
		return nil, audioerr.New(audioerr.KindInvalidArgument, op, "target rate must be positive: %d", targetRate)
	}
	if signal.SampleRate() == targetRate {
		return signal, nil
	}

	channels := signal.Channels()
	var out []float64
	outFrames := 0

	for c := range channels {
		converted, err := r.resampleChannel(ctx, signal.Channel(c), signal.SampleRate(), targetRate)
		if err != nil {
			return nil, err
		}
		if out == nil {
			outFrames = len(converted)
			out = make([]float64, outFrames*channels)
		}
		for i, v := range converted {
			out[i*channels+c] = v
		}
	}

	resampled, err := NewSignal(out, targetRate, channels)
	if err != nil {
		return nil, err
	}
	return resampled.withFormat(signal.Format()), nil
}

func (r *Resampler) resampleChannel(ctx context.Context, in []float64, fromRate, toRate int) ([]float64, error) {
	const op = "transcode.Resampler.resampleChannel"

	if len(in) == 0 {
		return []float64{}, nil
	}

	ratio := float64(toRate) / float64(fromRate)
	outLen := int((int64(len(in))*int64(toRate) + int64(fromRate) - 1) / int64(fromRate))

	// cutoff relative to the input Nyquist, lowered when decimating
	cutoff := math.Min(1.0, ratio)
	width := float64(r.halfTaps) / cutoff

	out := make([]float64, outLen)
	for j := range outLen {
		if j%cancelCheckInterval == 0 {
			if err := audioerr.Cancelled(ctx, op); err != nil {
				return nil, err
			}
		}

		t := float64(j) / ratio

		lo := max(int(math.Ceil(t-width)), 0)
		hi := min(int(math.Floor(t+width)), len(in)-1)

		sum := 0.0
		for k := lo; k <= hi; k++ {
			x := t - float64(k)
			sum += in[k] * cutoff * sinc(cutoff*x) * r.window.At(x/width)
		}
		out[j] = sum
	}

	return out, nil
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}
