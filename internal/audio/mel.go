package audio

import (
	"errors"
	"fmt"
	"math"

	"github.com/example/go-textmel/internal/tensor"
)

// logFloor is the clamp applied before the log, matching the reference
// front end.
const logFloor = 1e-5

// SpectrogramParams configures mel-spectrogram extraction.
type SpectrogramParams struct {
	NFFT       int     // FFT size, power of two
	NumMels    int     // number of mel bins
	SampleRate int     // audio sample rate in Hz
	HopLength  int     // hop between frames in samples
	WinLength  int     // analysis window length in samples
	FMin       float64 // lowest mel band edge in Hz
	FMax       float64 // highest mel band edge in Hz
}

// Spectrogram computes log-mel spectrograms with no center padding: frames
// are taken only where a full window fits, so the time dimension is
// 1 + (len-win)/hop for len >= win and 0 otherwise.
type Spectrogram struct {
	p      SpectrogramParams
	window []float64
	bank   [][]float64
}

// NewSpectrogram validates params and precomputes the window and mel bank.
func NewSpectrogram(p SpectrogramParams) (*Spectrogram, error) {
	if !isPowerOfTwo(p.NFFT) {
		return nil, fmt.Errorf("n_fft must be a power of two, got %d", p.NFFT)
	}
	if p.NumMels <= 0 {
		return nil, fmt.Errorf("n_mels must be positive, got %d", p.NumMels)
	}
	if p.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", p.SampleRate)
	}
	if p.HopLength <= 0 {
		return nil, fmt.Errorf("hop length must be positive, got %d", p.HopLength)
	}
	if p.WinLength <= 0 || p.WinLength > p.NFFT {
		return nil, fmt.Errorf("window length %d must be in (0, n_fft=%d]", p.WinLength, p.NFFT)
	}
	if p.FMax <= p.FMin {
		return nil, fmt.Errorf("f_max %g must exceed f_min %g", p.FMax, p.FMin)
	}
	if p.FMax > float64(p.SampleRate)/2 {
		return nil, fmt.Errorf("f_max %g exceeds Nyquist %d", p.FMax, p.SampleRate/2)
	}

	return &Spectrogram{
		p:      p,
		window: hannWindow(p.WinLength),
		bank:   melFilterBank(p.NumMels, p.NFFT, p.SampleRate, p.FMin, p.FMax),
	}, nil
}

// NumFrames returns the number of full-window frames in n samples.
func (s *Spectrogram) NumFrames(n int) int {
	if n < s.p.WinLength {
		return 0
	}

	return (n-s.p.WinLength)/s.p.HopLength + 1
}

// Compute returns the log-mel spectrogram of pcm with shape [NumMels, T].
func (s *Spectrogram) Compute(pcm []float32) (*tensor.Float, error) {
	p := s.p
	numFrames := s.NumFrames(len(pcm))
	halfFFT := p.NFFT/2 + 1

	data := make([]float32, p.NumMels*numFrames)

	frameRe := make([]float64, p.NFFT)
	frameIm := make([]float64, p.NFFT)
	mag := make([]float64, halfFFT)

	for t := 0; t < numFrames; t++ {
		start := t * p.HopLength

		for i := 0; i < p.WinLength; i++ {
			frameRe[i] = float64(pcm[start+i]) * s.window[i]
		}
		for i := p.WinLength; i < p.NFFT; i++ {
			frameRe[i] = 0
		}
		for i := range frameIm {
			frameIm[i] = 0
		}

		fft(frameRe, frameIm)

		// Magnitude spectrum, with the reference front end's epsilon
		// under the square root.
		for i := 0; i < halfFFT; i++ {
			mag[i] = math.Sqrt(frameRe[i]*frameRe[i] + frameIm[i]*frameIm[i] + 1e-9)
		}

		for m := 0; m < p.NumMels; m++ {
			sum := 0.0
			for k, w := range s.bank[m] {
				sum += w * mag[k]
			}
			if sum < logFloor {
				sum = logFloor
			}
			data[m*numFrames+t] = float32(math.Log(sum))
		}
	}

	return tensor.NewFloat(data, []int64{int64(p.NumMels), int64(numFrames)})
}

// Normalize returns (mel - mean) / std applied elementwise.
func Normalize(mel *tensor.Float, mean, std float64) (*tensor.Float, error) {
	if mel == nil {
		return nil, errors.New("normalize: nil spectrogram")
	}
	if std == 0 {
		return nil, errors.New("normalize: zero std")
	}

	out := mel.Clone()
	data := out.RawData()
	m := float32(mean)
	inv := float32(1.0 / std)
	for i := range data {
		data[i] = (data[i] - m) * inv
	}

	return out, nil
}

// hannWindow generates a periodic Hann window of the given length.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1.0 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}

	return w
}

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melLinearStep = 200.0 / 3.0
	melBreakHz    = 1000.0
	melBreakMel   = melBreakHz / melLinearStep
)

var melLogStep = math.Log(6.4) / 27.0

// hzToMel converts frequency in Hz to slaney mel scale.
func hzToMel(hz float64) float64 {
	if hz >= melBreakHz {
		return melBreakMel + math.Log(hz/melBreakHz)/melLogStep
	}

	return hz / melLinearStep
}

// melToHz converts slaney mel scale back to Hz.
func melToHz(mel float64) float64 {
	if mel >= melBreakMel {
		return melBreakHz * math.Exp(melLogStep*(mel-melBreakMel))
	}

	return mel * melLinearStep
}

// melFilterBank creates the slaney-style triangular filterbank: band edges
// equally spaced on the slaney mel scale, triangles evaluated at the exact
// FFT bin frequencies, each filter area-normalized by 2/(f_upper - f_lower).
// Returns [numMels][halfFFT] where halfFFT = fftSize/2 + 1.
func melFilterBank(numMels, fftSize, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	halfFFT := fftSize/2 + 1
	lowMel := hzToMel(lowFreq)
	highMel := hzToMel(highFreq)

	// numMels + 2 band edges in Hz, equally spaced in mel.
	edges := make([]float64, numMels+2)
	step := (highMel - lowMel) / float64(numMels+1)
	for i := range edges {
		edges[i] = melToHz(lowMel + float64(i)*step)
	}

	fftFreqs := make([]float64, halfFFT)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * float64(sampleRate) / float64(fftSize)
	}

	bank := make([][]float64, numMels)
	for m := 0; m < numMels; m++ {
		filter := make([]float64, halfFFT)
		lower, center, upper := edges[m], edges[m+1], edges[m+2]
		enorm := 2.0 / (upper - lower)

		for k, f := range fftFreqs {
			rising := (f - lower) / (center - lower)
			falling := (upper - f) / (upper - center)
			w := math.Min(rising, falling)
			if w <= 0 {
				continue
			}
			filter[k] = w * enorm
		}
		bank[m] = filter
	}

	return bank
}
