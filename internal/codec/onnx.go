package codec

import (
	"context"
	"fmt"
	"log/slog"

	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"

	"github.com/example/go-textmel/internal/config"
	"github.com/example/go-textmel/internal/tensor"
)

// ONNXCodec runs a codec graph through ONNX Runtime. The graph takes a
// float waveform tensor [B, 1, Tw] and emits latents [B, D, Tc]; Encode
// returns them transposed to [B, Tc, D].
type ONNXCodec struct {
	runtime *ort.Runtime
	env     *ort.Env
	session *ort.Session

	inputName  string
	outputName string
	hopFactor  int
}

// NewONNX loads the codec model described by cfg and prepares a session.
func NewONNX(cfg config.CodecConfig) (*ONNXCodec, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("codec model path is empty")
	}
	if cfg.HopFactor <= 0 {
		return nil, fmt.Errorf("codec hop factor must be positive, got %d", cfg.HopFactor)
	}

	apiVersion := cfg.ORTAPIVersion
	if apiVersion == 0 {
		apiVersion = 23
	}

	runtime, err := ort.NewRuntime(cfg.ORTLibraryPath, apiVersion)
	if err != nil {
		return nil, fmt.Errorf("ort runtime: %w", err)
	}

	env, err := runtime.NewEnv("textmel-codec", ort.LoggingLevelWarning)
	if err != nil {
		_ = runtime.Close()
		return nil, fmt.Errorf("ort env: %w", err)
	}

	session, err := runtime.NewSession(env, cfg.ModelPath, nil)
	if err != nil {
		env.Close()
		_ = runtime.Close()

		return nil, fmt.Errorf("ort session (%s): %w", cfg.ModelPath, err)
	}

	slog.Debug("codec session ready",
		"model", cfg.ModelPath,
		"input", cfg.InputName,
		"output", cfg.OutputName,
		"hop_factor", cfg.HopFactor)

	return &ONNXCodec{
		runtime:    runtime,
		env:        env,
		session:    session,
		inputName:  cfg.InputName,
		outputName: cfg.OutputName,
		hopFactor:  cfg.HopFactor,
	}, nil
}

// Encode runs the codec graph over a padded waveform batch [B, 1, Tw] and
// returns latents with shape [B, Tc, D].
func (c *ONNXCodec) Encode(ctx context.Context, waveforms *tensor.Float) (*tensor.Float, error) {
	if c.session == nil {
		return nil, ErrClosed
	}

	batch, length, err := validateWaveforms(waveforms)
	if err != nil {
		return nil, err
	}

	data, kept := curtailFromLeft(waveforms.RawData(), batch, length, c.hopFactor)
	if kept == 0 {
		return nil, fmt.Errorf("waveform length %d is shorter than one codec hop (%d)", length, c.hopFactor)
	}

	in, err := ort.NewTensorValue(c.runtime, data, []int64{int64(batch), 1, int64(kept)})
	if err != nil {
		return nil, fmt.Errorf("input %q: %w", c.inputName, err)
	}
	defer in.Close()

	outputs, err := c.session.Run(ctx, map[string]*ort.Value{c.inputName: in})
	if err != nil {
		return nil, fmt.Errorf("run codec: %w", err)
	}
	defer closeValues(outputs)

	out, ok := outputs[c.outputName]
	if !ok {
		return nil, fmt.Errorf("codec graph produced no output named %q", c.outputName)
	}

	latents, shape, err := floatTensorData(out)
	if err != nil {
		return nil, fmt.Errorf("output %q: %w", c.outputName, err)
	}
	if len(shape) != 3 || shape[0] != int64(batch) {
		return nil, fmt.Errorf("codec output has shape %v, want [%d, D, Tc]", shape, batch)
	}

	d, tc := int(shape[1]), int(shape[2])

	return tensor.NewFloat(transposeLast(latents, batch, d, tc), []int64{int64(batch), int64(tc), int64(d)})
}

// Close releases all ORT resources. Safe to call multiple times.
func (c *ONNXCodec) Close() error {
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
	if c.env != nil {
		c.env.Close()
		c.env = nil
	}
	if c.runtime != nil {
		err := c.runtime.Close()
		c.runtime = nil

		return err
	}

	return nil
}

// floatTensorData reads a float32 or int64 ORT tensor as float32 data.
// Codec graphs that emit discrete code ids use int64; they are widened so
// downstream consumers see a single dtype.
func floatTensorData(v *ort.Value) ([]float32, []int64, error) {
	elemType, err := v.GetTensorElementType()
	if err != nil {
		return nil, nil, fmt.Errorf("get element type: %w", err)
	}

	switch elemType {
	case ort.ONNXTensorElementDataTypeFloat:
		return ort.GetTensorData[float32](v)
	case ort.ONNXTensorElementDataTypeInt64:
		ids, shape, err := ort.GetTensorData[int64](v)
		if err != nil {
			return nil, nil, err
		}

		data := make([]float32, len(ids))
		for i, id := range ids {
			data[i] = float32(id)
		}

		return data, shape, nil
	default:
		return nil, nil, fmt.Errorf("unsupported ORT element type %d", elemType)
	}
}

func closeValues(vals map[string]*ort.Value) {
	for _, v := range vals {
		if v != nil {
			v.Close()
		}
	}
}
