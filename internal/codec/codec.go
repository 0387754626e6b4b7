// Package codec extracts discrete-codec latents from waveform batches using
// a pretrained neural audio codec exported to ONNX.
package codec

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/go-textmel/internal/tensor"
)

// ErrClosed is returned by Encode after Close has been called.
var ErrClosed = errors.New("codec is closed")

// Codec encodes a padded waveform batch with shape [B, 1, Tw] into a latent
// tensor with shape [B, Tc, D]. Implementations must be safe for sequential
// reuse across batches.
type Codec interface {
	Encode(ctx context.Context, waveforms *tensor.Float) (*tensor.Float, error)
	Close() error
}

// curtailFromLeft drops leading samples from every row of a padded [B, 1, Tw]
// waveform buffer so that the remaining length is a multiple of hop. The
// codec emits one latent frame per hop of input, so the remainder is shaved
// off the front where padding never sits.
func curtailFromLeft(data []float32, batch, length, hop int) ([]float32, int) {
	rem := length % hop
	if rem == 0 {
		return data, length
	}

	kept := length - rem
	out := make([]float32, batch*kept)
	for b := 0; b < batch; b++ {
		copy(out[b*kept:(b+1)*kept], data[b*length+rem:(b+1)*length])
	}

	return out, kept
}

// transposeLast swaps the last two axes of a [B, D, T] buffer into [B, T, D].
func transposeLast(data []float32, batch, d, t int) []float32 {
	out := make([]float32, len(data))
	for b := 0; b < batch; b++ {
		base := b * d * t
		for i := 0; i < d; i++ {
			for j := 0; j < t; j++ {
				out[base+j*d+i] = data[base+i*t+j]
			}
		}
	}

	return out
}

func validateWaveforms(waveforms *tensor.Float) (batch, length int, err error) {
	shape := waveforms.Shape()
	if len(shape) != 3 || shape[1] != 1 {
		return 0, 0, fmt.Errorf("waveform batch has shape %v, want [B, 1, Tw]", shape)
	}
	if shape[0] == 0 || shape[2] == 0 {
		return 0, 0, fmt.Errorf("waveform batch has empty axis: shape %v", shape)
	}

	return int(shape[0]), int(shape[2]), nil
}
