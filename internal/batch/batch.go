// Package batch merges variable-length samples into padded, length-annotated
// training batches.
package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/go-textmel/internal/codec"
	"github.com/example/go-textmel/internal/dataset"
	"github.com/example/go-textmel/internal/tensor"
)

// ErrShapeMismatch is returned when batch items disagree on the mel feature
// dimension.
var ErrShapeMismatch = errors.New("inconsistent feature dimension across batch items")

// Batch is one padded training batch. Padded regions are zero-filled and
// per-item true lengths travel alongside each padded tensor. Speakers is nil
// for single-speaker runs; Codes and CodeLengths are nil when no codec is
// configured.
type Batch struct {
	Symbols         *tensor.Int   // [B, TxMax]
	SymbolLengths   *tensor.Int   // [B]
	Mels            *tensor.Float // [B, numMels, TyMax]
	MelLengths      *tensor.Int   // [B]
	Speakers        *tensor.Int   // [B], nil unless multi-speaker
	Waveforms       *tensor.Float // [B, 1, TwMax]
	WaveformLengths *tensor.Int   // [B]
	Codes           *tensor.Float // [B, Tc, D], nil without a codec
	CodeLengths     *tensor.Int   // [B], nil without a codec
}

// PromptSpec aliases the mel tensor under the field name some consumers
// expect.
func (b *Batch) PromptSpec() *tensor.Float { return b.Mels }

// PromptLengths aliases MelLengths.
func (b *Batch) PromptLengths() *tensor.Int { return b.MelLengths }

// PromptCodes aliases Codes.
func (b *Batch) PromptCodes() *tensor.Float { return b.Codes }

// PromptCodeLengths aliases CodeLengths.
func (b *Batch) PromptCodeLengths() *tensor.Int { return b.CodeLengths }

// Size reports the number of items in the batch.
func (b *Batch) Size() int {
	if b.Symbols == nil {
		return 0
	}
	return int(b.Symbols.Dim(0))
}

// FixLength rounds n up to the next multiple of factor. Mel time axes are
// padded to such multiples so they divide evenly under model downsampling.
func FixLength(n, factor int) int {
	if factor <= 1 {
		return n
	}
	if rem := n % factor; rem != 0 {
		return n + factor - rem
	}
	return n
}

// CollatorOptions configures a Collator.
type CollatorOptions struct {
	NumMels     int
	HopLength   int
	NumSpeakers int
	// LengthFactor is the mel-length compatibility factor. Zero means the
	// default of 4.
	LengthFactor int
	// Codec, when non-nil, is invoked on each collated waveform batch.
	Codec codec.Codec
	// CodecHopFactor is the number of waveform samples per code frame,
	// used to compute expected code lengths. Zero means the default of 320.
	CodecHopFactor int
}

// Collator assembles samples into padded batches.
type Collator struct {
	numMels     int
	hopLength   int
	factor      int
	multi       bool
	codec       codec.Codec
	codecFactor int
}

// NewCollator validates opts and returns a ready collator.
func NewCollator(opts CollatorOptions) (*Collator, error) {
	if opts.NumMels <= 0 {
		return nil, fmt.Errorf("collator needs a positive mel count, got %d", opts.NumMels)
	}
	if opts.HopLength <= 0 {
		return nil, fmt.Errorf("collator needs a positive hop length, got %d", opts.HopLength)
	}

	factor := opts.LengthFactor
	if factor == 0 {
		factor = 4
	}
	codecFactor := opts.CodecHopFactor
	if codecFactor == 0 {
		codecFactor = 320
	}

	return &Collator{
		numMels:     opts.NumMels,
		hopLength:   opts.HopLength,
		factor:      factor,
		multi:       opts.NumSpeakers > 1,
		codec:       opts.Codec,
		codecFactor: codecFactor,
	}, nil
}

// Collate merges samples into one Batch. Mel time axes are padded to a
// multiple of the length factor, the waveform axis to exactly the padded mel
// length times the hop length. Waveforms longer than that are truncated to
// their leading samples. Collation is deterministic for fixed inputs and a
// fixed codec.
func (c *Collator) Collate(ctx context.Context, samples []dataset.Sample) (*Batch, error) {
	n := len(samples)
	if n == 0 {
		return nil, errors.New("cannot collate an empty sample list")
	}

	txMax, tyRaw := 0, 0
	for i, smp := range samples {
		shape := smp.Mel.Shape()
		if len(shape) != 2 || shape[0] != int64(c.numMels) {
			return nil, fmt.Errorf("%w: item %d has mel shape %v, want [%d, T]",
				ErrShapeMismatch, i, shape, c.numMels)
		}
		if t := int(shape[1]); t > tyRaw {
			tyRaw = t
		}
		if len(smp.Symbols) > txMax {
			txMax = len(smp.Symbols)
		}
	}

	tyMax := FixLength(tyRaw, c.factor)
	twMax := tyMax * c.hopLength

	symbols := make([]int64, n*txMax)
	symbolLengths := make([]int64, n)
	mels := make([]float32, n*c.numMels*tyMax)
	melLengths := make([]int64, n)
	waves := make([]float32, n*twMax)
	waveLengths := make([]int64, n)

	var speakers []int64
	if c.multi {
		speakers = make([]int64, n)
	}

	for i, smp := range samples {
		copy(symbols[i*txMax:], smp.Symbols)
		symbolLengths[i] = int64(len(smp.Symbols))

		melT := int(smp.Mel.Dim(1))
		melLengths[i] = int64(melT)
		src := smp.Mel.RawData()
		for m := 0; m < c.numMels; m++ {
			dst := mels[i*c.numMels*tyMax+m*tyMax:]
			copy(dst[:melT], src[m*melT:(m+1)*melT])
		}

		wavLen := len(smp.Waveform)
		if wavLen > twMax {
			wavLen = twMax
		}
		copy(waves[i*twMax:], smp.Waveform[:wavLen])
		waveLengths[i] = int64(wavLen)

		if c.multi {
			speakers[i] = int64(smp.Speaker)
		}
	}

	b := &Batch{}
	var err error
	if b.Symbols, err = tensor.NewInt(symbols, []int64{int64(n), int64(txMax)}); err != nil {
		return nil, err
	}
	if b.SymbolLengths, err = tensor.NewInt(symbolLengths, []int64{int64(n)}); err != nil {
		return nil, err
	}
	if b.Mels, err = tensor.NewFloat(mels, []int64{int64(n), int64(c.numMels), int64(tyMax)}); err != nil {
		return nil, err
	}
	if b.MelLengths, err = tensor.NewInt(melLengths, []int64{int64(n)}); err != nil {
		return nil, err
	}
	if b.Waveforms, err = tensor.NewFloat(waves, []int64{int64(n), 1, int64(twMax)}); err != nil {
		return nil, err
	}
	if b.WaveformLengths, err = tensor.NewInt(waveLengths, []int64{int64(n)}); err != nil {
		return nil, err
	}
	if c.multi {
		if b.Speakers, err = tensor.NewInt(speakers, []int64{int64(n)}); err != nil {
			return nil, err
		}
	}

	if c.codec != nil {
		codes, err := c.codec.Encode(ctx, b.Waveforms)
		if err != nil {
			return nil, fmt.Errorf("codec: %w", err)
		}
		b.Codes = codes

		codeLengths := make([]int64, n)
		for i := range codeLengths {
			codeLengths[i] = 1 + waveLengths[i]/int64(c.codecFactor)
		}
		if b.CodeLengths, err = tensor.NewInt(codeLengths, []int64{int64(n)}); err != nil {
			return nil, err
		}
	}

	return b, nil
}
