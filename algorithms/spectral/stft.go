package spectral

import (
	"context"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-studio/algorithms/common"
	"github.com/RyanBlaney/sonido-studio/algorithms/windowing"
	"github.com/RyanBlaney/sonido-studio/audioerr"
	"github.com/RyanBlaney/sonido-studio/logging"
)

// SpectralFrame is one analysis window of a spectrogram
type SpectralFrame struct {
	Index     int       `json:"index"`
	Time      float64   `json:"time"`      // window centre in seconds
	Magnitude []float64 `json:"magnitude"` // WindowSize/2+1 bins
}

// Spectrogram is the time-ordered magnitude STFT of a signal
type Spectrogram struct {
	Frames      []SpectralFrame `json:"frames"`
	SampleRate  int             `json:"sample_rate"`
	WindowSize  int             `json:"window_size"`
	HopSize     int             `json:"hop_size"`
	SampleCount int             `json:"sample_count"` // length of the analysed signal
}

// NumFrames returns the number of frames
func (s *Spectrogram) NumFrames() int {
	return len(s.Frames)
}

// NumBins returns the number of magnitude bins per frame
func (s *Spectrogram) NumBins() int {
	return s.WindowSize/2 + 1
}

// FreqResolution returns the bin spacing in Hz
func (s *Spectrogram) FreqResolution() float64 {
	return float64(s.SampleRate) / float64(s.WindowSize)
}

// BinFrequency returns the centre frequency of bin k in Hz
func (s *Spectrogram) BinFrequency(k int) float64 {
	return float64(k) * s.FreqResolution()
}

// HopDuration returns the time between frame starts in seconds
func (s *Spectrogram) HopDuration() float64 {
	return float64(s.HopSize) / float64(s.SampleRate)
}

// FrameStartTime returns the time of the first sample of frame i
func (s *Spectrogram) FrameStartTime(i int) float64 {
	return float64(i*s.HopSize) / float64(s.SampleRate)
}

// Duration returns the length of the analysed signal in seconds
func (s *Spectrogram) Duration() float64 {
	return float64(s.SampleCount) / float64(s.SampleRate)
}

// STFT provides Short-Time Fourier Transform functionality
type STFT struct {
	windowSize int
	hopSize    int
	workers    int
	window     *windowing.Hann
	logger     logging.Logger
}

// NewSTFT creates a new STFT calculator with a periodic Hann window.
// workers <= 0 sizes the pool from the CPU count and workload.
func NewSTFT(windowSize, hopSize, workers int, logger logging.Logger) (*STFT, error) {
	const op = "spectral.NewSTFT"

	if !common.IsPowerOfTwo(windowSize) {
		return nil, audioerr.New(audioerr.KindInvalidArgument, op, "window size must be a power of two: %d", windowSize)
	}
	if hopSize <= 0 {
		return nil, audioerr.New(audioerr.KindInvalidArgument, op, "hop size must be positive: %d", hopSize)
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &STFT{
		windowSize: windowSize,
		hopSize:    hopSize,
		workers:    workers,
		window:     windowing.NewHann(windowSize),
		logger:     logger,
	}, nil
}

// Compute computes the magnitude spectrogram of a mono signal.
// Frames start every hopSize samples; windows running past the end are zero
// padded, so the frame count is ceil(len(samples)/hopSize).
func (s *STFT) Compute(ctx context.Context, samples []float64, sampleRate int) (*Spectrogram, error) {
	const op = "spectral.STFT.Compute"

	logger := s.logger.WithContext(ctx).WithFields(logging.Fields{
		"component": "stft",
		"function":  "Compute",
	})

	if sampleRate <= 0 {
		return nil, audioerr.New(audioerr.KindInvalidArgument, op, "sample rate must be positive: %d", sampleRate)
	}
	if len(samples) == 0 {
		return nil, audioerr.New(audioerr.KindInsufficientSignal, op, "empty signal")
	}

	numFrames := (len(samples) + s.hopSize - 1) / s.hopSize
	freqBins := s.windowSize/2 + 1

	// one backing array keeps the spectrogram contiguous
	backing := make([]float64, numFrames*freqBins)
	frames := make([]SpectralFrame, numFrames)
	for i := range numFrames {
		frames[i] = SpectralFrame{
			Index:     i,
			Time:      float64(i*s.hopSize+s.windowSize/2) / float64(sampleRate),
			Magnitude: backing[i*freqBins : (i+1)*freqBins : (i+1)*freqBins],
		}
	}

	numWorkers := s.workerCount(numFrames)
	jobs := make(chan int, numWorkers)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// each worker owns its plan and frame buffer
			plan := NewRealFFT(s.windowSize)
			frameBuffer := make([]float64, s.windowSize)

			for frameIdx := range jobs {
				if ctx.Err() != nil {
					continue
				}

				start := frameIdx * s.hopSize

				s.window.Frame(frameBuffer, samples[start:min(start+s.windowSize, len(samples))])

				plan.Magnitudes(frameBuffer, frames[frameIdx].Magnitude)
			}
		}()
	}

dispatch:
	for frameIdx := range numFrames {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- frameIdx:
		}
	}
	close(jobs)
	wg.Wait()

	if err := audioerr.Cancelled(ctx, op); err != nil {
		logger.Debug("STFT cancelled")
		return nil, err
	}

	logger.Debug("STFT computed", logging.Fields{
		"frames":      numFrames,
		"bins":        freqBins,
		"window_size": s.windowSize,
		"hop_size":    s.hopSize,
		"workers":     numWorkers,
	})

	return &Spectrogram{
		Frames:      frames,
		SampleRate:  sampleRate,
		WindowSize:  s.windowSize,
		HopSize:     s.hopSize,
		SampleCount: len(samples),
	}, nil
}

// WindowSize returns the analysis window length
func (s *STFT) WindowSize() int {
	return s.windowSize
}

// HopSize returns the hop between frames
func (s *STFT) HopSize() int {
	return s.hopSize
}

// workerCount determines the number of workers based on configuration and workload
func (s *STFT) workerCount(numFrames int) int {
	if s.workers > 0 {
		return max(1, min(s.workers, numFrames))
	}

	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	// For medium workloads, use most CPUs
	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
