// Package dataset turns manifest records into training samples: encoded
// symbol sequences paired with normalized log-mel spectrograms and the
// raw waveform they were computed from.
package dataset

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/example/go-textmel/internal/audio"
	"github.com/example/go-textmel/internal/config"
	"github.com/example/go-textmel/internal/manifest"
	"github.com/example/go-textmel/internal/tensor"
	"github.com/example/go-textmel/internal/text"
)

// ErrSampleExhausted is returned when every resample attempt for a sample
// produced a clip shorter than the configured minimum.
var ErrSampleExhausted = errors.New("no record met the minimum duration")

// Sample is one fully materialized training example.
type Sample struct {
	// Symbols is the encoded (and, when configured, blank-interspersed)
	// symbol id sequence.
	Symbols []int64
	// Mel is the normalized log-mel spectrogram with shape [numMels, frames].
	Mel *tensor.Float
	// Waveform holds the decoded PCM samples in [-1, 1].
	Waveform []float32
	// Speaker is the speaker id, meaningful only in multi-speaker setups.
	Speaker int
}

// Split is one dataset split (train or valid) backed by a parsed filelist.
// Records are shuffled once at construction using the split's own seeded
// source so that iteration order is reproducible per seed. Sample is safe
// for concurrent use.
type Split struct {
	records  []manifest.Record
	cleaners []string
	addBlank bool
	multi    bool

	spec       *audio.Spectrogram
	sampleRate int
	mean, std  float64

	minSamples  int
	maxAttempts int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSplit parses the filelist at path and prepares a split according to cfg.
// Cleaner names and spectrogram parameters are validated up front so that
// Sample cannot fail on configuration errors later.
func NewSplit(path string, cfg config.Config) (*Split, error) {
	multi := cfg.Data.NumSpeakers > 1

	records, err := manifest.ParseFile(path, cfg.Data.Separator, multi)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("filelist %s contains no records", path)
	}

	if _, err := text.ResolveCleaners(cfg.Data.Cleaners); err != nil {
		return nil, err
	}

	spec, err := audio.NewSpectrogram(audio.SpectrogramParams{
		NFFT:       cfg.Mel.NFFT,
		NumMels:    cfg.Mel.NumMels,
		SampleRate: cfg.Mel.SampleRate,
		HopLength:  cfg.Mel.HopLength,
		WinLength:  cfg.Mel.WinLength,
		FMin:       cfg.Mel.FMin,
		FMax:       cfg.Mel.FMax,
	})
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Data.Seed))
	rng.Shuffle(len(records), func(i, j int) {
		records[i], records[j] = records[j], records[i]
	})

	slog.Debug("dataset split ready",
		"path", path,
		"records", len(records),
		"multi_speaker", multi,
		"min_samples", cfg.Data.MinSamples)

	return &Split{
		records:     records,
		cleaners:    cfg.Data.Cleaners,
		addBlank:    cfg.Data.AddBlank,
		multi:       multi,
		spec:        spec,
		sampleRate:  cfg.Mel.SampleRate,
		mean:        cfg.Mel.Mean,
		std:         cfg.Mel.Std,
		minSamples:  cfg.Data.MinSamples,
		maxAttempts: cfg.Data.MaxResampleAttempts,
		rng:         rng,
	}, nil
}

// Len reports the number of records in the split.
func (s *Split) Len() int {
	return len(s.records)
}

// Record returns the shuffled record at index i.
func (s *Split) Record(i int) manifest.Record {
	return s.records[i]
}

// Sample materializes the sample at index i. When the record's clip is
// shorter than the configured minimum, a uniformly random record is tried
// instead, up to the configured attempt limit; past that ErrSampleExhausted
// is returned. Decode and encoding failures abort immediately.
func (s *Split) Sample(i int) (Sample, error) {
	if i < 0 || i >= len(s.records) {
		return Sample{}, fmt.Errorf("sample index %d out of range [0, %d)", i, len(s.records))
	}

	idx := i
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		rec := s.records[idx]
		wave, err := audio.LoadFile(rec.Path, s.sampleRate)
		if err != nil {
			return Sample{}, fmt.Errorf("record %q: %w", rec.Path, err)
		}

		if len(wave) >= s.minSamples {
			return s.build(rec, wave)
		}

		slog.Debug("clip below minimum duration, resampling",
			"path", rec.Path,
			"samples", len(wave),
			"attempt", attempt+1)
		idx = s.randomIndex()
	}

	return Sample{}, fmt.Errorf("%w after %d attempts", ErrSampleExhausted, s.maxAttempts)
}

func (s *Split) build(rec manifest.Record, wave []float32) (Sample, error) {
	seq, err := text.ToSequence(rec.Text, s.cleaners)
	if err != nil {
		return Sample{}, fmt.Errorf("record %q: %w", rec.Path, err)
	}
	if s.addBlank {
		seq = text.Intersperse(seq, text.PadID)
	}

	mel, err := s.spec.Compute(wave)
	if err != nil {
		return Sample{}, fmt.Errorf("record %q: %w", rec.Path, err)
	}
	mel, err = audio.Normalize(mel, s.mean, s.std)
	if err != nil {
		return Sample{}, err
	}

	speaker := 0
	if s.multi {
		speaker = rec.Speaker
	}

	return Sample{
		Symbols:  seq,
		Mel:      mel,
		Waveform: wave,
		Speaker:  speaker,
	}, nil
}

func (s *Split) randomIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(len(s.records))
}
