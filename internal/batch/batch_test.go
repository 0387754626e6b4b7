package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/example/go-textmel/internal/dataset"
	"github.com/example/go-textmel/internal/tensor"
)

// fakeCodec emits one frame per hop of input, filled with the frame index.
type fakeCodec struct {
	hop int
	dim int
}

func (f *fakeCodec) Encode(_ context.Context, waveforms *tensor.Float) (*tensor.Float, error) {
	shape := waveforms.Shape()
	b, tw := int(shape[0]), int(shape[2])
	tc := tw / f.hop
	data := make([]float32, b*tc*f.dim)
	for i := range data {
		data[i] = float32((i / f.dim) % tc)
	}
	return tensor.NewFloat(data, []int64{int64(b), int64(tc), int64(f.dim)})
}

func (f *fakeCodec) Close() error { return nil }

type failingCodec struct{ err error }

func (f *failingCodec) Encode(context.Context, *tensor.Float) (*tensor.Float, error) {
	return nil, f.err
}

func (f *failingCodec) Close() error { return nil }

func makeSample(tb testing.TB, numMels, melT, wavLen, numSymbols, speaker int) dataset.Sample {
	tb.Helper()

	melData := make([]float32, numMels*melT)
	for i := range melData {
		melData[i] = float32(i%7) + 0.5
	}
	mel, err := tensor.NewFloat(melData, []int64{int64(numMels), int64(melT)})
	if err != nil {
		tb.Fatalf("NewFloat: %v", err)
	}

	wave := make([]float32, wavLen)
	for i := range wave {
		wave[i] = float32(i) / float32(wavLen)
	}

	symbols := make([]int64, numSymbols)
	for i := range symbols {
		symbols[i] = int64(i + 1)
	}

	return dataset.Sample{Symbols: symbols, Mel: mel, Waveform: wave, Speaker: speaker}
}

func TestFixLength(t *testing.T) {
	tests := []struct {
		n, factor, want int
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 4, 8},
		{83, 4, 84},
		{7, 1, 7},
		{7, 0, 7},
	}
	for _, tt := range tests {
		if got := FixLength(tt.n, tt.factor); got != tt.want {
			t.Errorf("FixLength(%d, %d) = %d, want %d", tt.n, tt.factor, got, tt.want)
		}
	}
}

func TestCollate_ShapesAndPadding(t *testing.T) {
	const (
		numMels = 4
		hop     = 256
	)
	c, err := NewCollator(CollatorOptions{NumMels: numMels, HopLength: hop})
	if err != nil {
		t.Fatalf("NewCollator: %v", err)
	}

	// Two single-speaker items with different lengths.
	samples := []dataset.Sample{
		makeSample(t, numMels, 10, 10*hop, 5, 0),
		makeSample(t, numMels, 7, 7*hop, 9, 0),
	}

	b, err := c.Collate(context.Background(), samples)
	if err != nil {
		t.Fatalf("Collate: %v", err)
	}

	if b.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", b.Size())
	}

	// TyMax rounds 10 up to 12; TwMax follows from the hop length.
	melShape := b.Mels.Shape()
	if melShape[2]%4 != 0 {
		t.Errorf("padded mel length %d not a multiple of 4", melShape[2])
	}
	if melShape[2] != 12 {
		t.Errorf("padded mel length = %d, want 12", melShape[2])
	}
	wavShape := b.Waveforms.Shape()
	if wavShape[2] != melShape[2]*hop {
		t.Errorf("waveform axis = %d, want mel axis * hop = %d", wavShape[2], melShape[2]*hop)
	}

	symShape := b.Symbols.Shape()
	if symShape[1] != 9 {
		t.Errorf("symbol axis = %d, want 9 (no rounding)", symShape[1])
	}

	if b.Speakers != nil {
		t.Error("speaker tensor present for a single-speaker collator")
	}
	if b.Codes != nil || b.CodeLengths != nil {
		t.Error("code tensors present without a codec")
	}

	wantMelLens := []int64{10, 7}
	wantWavLens := []int64{10 * hop, 7 * hop}
	wantSymLens := []int64{5, 9}
	for i := 0; i < 2; i++ {
		if got := b.MelLengths.RawData()[i]; got != wantMelLens[i] {
			t.Errorf("mel length %d = %d, want %d", i, got, wantMelLens[i])
		}
		if got := b.WaveformLengths.RawData()[i]; got != wantWavLens[i] {
			t.Errorf("waveform length %d = %d, want %d", i, got, wantWavLens[i])
		}
		if got := b.SymbolLengths.RawData()[i]; got != wantSymLens[i] {
			t.Errorf("symbol length %d = %d, want %d", i, got, wantSymLens[i])
		}
	}

	// Each item's true-length prefix is copied exactly and the rest is zero.
	tyMax := int(melShape[2])
	for i, smp := range samples {
		melT := int(smp.Mel.Dim(1))
		src := smp.Mel.RawData()
		dst := b.Mels.RawData()
		for m := 0; m < numMels; m++ {
			row := dst[i*numMels*tyMax+m*tyMax:]
			for tt := 0; tt < melT; tt++ {
				if row[tt] != src[m*melT+tt] {
					t.Fatalf("item %d mel[%d][%d] = %v, want %v", i, m, tt, row[tt], src[m*melT+tt])
				}
			}
			for tt := melT; tt < tyMax; tt++ {
				if row[tt] != 0 {
					t.Fatalf("item %d mel[%d][%d] = %v, want zero padding", i, m, tt, row[tt])
				}
			}
		}
	}
}

func TestCollate_TruncatesWaveformFromEnd(t *testing.T) {
	const (
		numMels = 2
		hop     = 4
	)
	c, err := NewCollator(CollatorOptions{NumMels: numMels, HopLength: hop})
	if err != nil {
		t.Fatalf("NewCollator: %v", err)
	}

	// Mel length 4 keeps TyMax at 4, so TwMax = 16; the waveform has 20
	// samples and must lose its trailing four.
	smp := makeSample(t, numMels, 4, 20, 3, 0)
	for i := range smp.Waveform {
		smp.Waveform[i] = float32(i)
	}

	b, err := c.Collate(context.Background(), []dataset.Sample{smp})
	if err != nil {
		t.Fatalf("Collate: %v", err)
	}

	wav := b.Waveforms.RawData()
	if len(wav) != 16 {
		t.Fatalf("waveform tensor has %d samples, want 16", len(wav))
	}
	for i := 0; i < 16; i++ {
		if wav[i] != float32(i) {
			t.Fatalf("sample %d = %v, want %v (must keep leading samples)", i, wav[i], float32(i))
		}
	}
	if got := b.WaveformLengths.RawData()[0]; got != 16 {
		t.Errorf("waveform length = %d, want 16 after truncation", got)
	}
}

func TestCollate_MultiSpeaker(t *testing.T) {
	c, err := NewCollator(CollatorOptions{NumMels: 2, HopLength: 4, NumSpeakers: 3})
	if err != nil {
		t.Fatalf("NewCollator: %v", err)
	}

	samples := []dataset.Sample{
		makeSample(t, 2, 4, 16, 3, 1),
		makeSample(t, 2, 4, 16, 3, 2),
	}
	b, err := c.Collate(context.Background(), samples)
	if err != nil {
		t.Fatalf("Collate: %v", err)
	}

	if b.Speakers == nil {
		t.Fatal("speaker tensor absent for a multi-speaker collator")
	}
	got := b.Speakers.RawData()
	if got[0] != 1 || got[1] != 2 {
		t.Errorf("speakers = %v, want [1 2]", got)
	}
}

func TestCollate_Codec(t *testing.T) {
	const hop = 8
	c, err := NewCollator(CollatorOptions{
		NumMels:        2,
		HopLength:      hop,
		Codec:          &fakeCodec{hop: 16, dim: 3},
		CodecHopFactor: 16,
	})
	if err != nil {
		t.Fatalf("NewCollator: %v", err)
	}

	samples := []dataset.Sample{
		makeSample(t, 2, 8, 8*hop, 3, 0),
		makeSample(t, 2, 6, 6*hop, 3, 0),
	}
	b, err := c.Collate(context.Background(), samples)
	if err != nil {
		t.Fatalf("Collate: %v", err)
	}

	if b.Codes == nil || b.CodeLengths == nil {
		t.Fatal("code tensors absent with a codec configured")
	}
	shape := b.Codes.Shape()
	if len(shape) != 3 || shape[0] != 2 || shape[2] != 3 {
		t.Fatalf("code shape = %v, want [2, Tc, 3]", shape)
	}

	// Expected code length is 1 + wavLen/hopFactor per item.
	want := []int64{1 + 8*hop/16, 1 + 6*hop/16}
	got := b.CodeLengths.RawData()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("code length %d = %d, want %d", i, got[i], want[i])
		}
	}

	if b.PromptCodes() != b.Codes || b.PromptCodeLengths() != b.CodeLengths {
		t.Error("prompt code aliases do not point at the code tensors")
	}
	if b.PromptSpec() != b.Mels || b.PromptLengths() != b.MelLengths {
		t.Error("prompt spec aliases do not point at the mel tensors")
	}
}

func TestCollate_CodecError(t *testing.T) {
	codecErr := errors.New("session died")
	c, err := NewCollator(CollatorOptions{
		NumMels:   2,
		HopLength: 4,
		Codec:     &failingCodec{err: codecErr},
	})
	if err != nil {
		t.Fatalf("NewCollator: %v", err)
	}

	_, err = c.Collate(context.Background(), []dataset.Sample{makeSample(t, 2, 4, 16, 3, 0)})
	if !errors.Is(err, codecErr) {
		t.Fatalf("Collate error = %v, want the codec's error", err)
	}
}

func TestCollate_ShapeMismatch(t *testing.T) {
	c, err := NewCollator(CollatorOptions{NumMels: 4, HopLength: 4})
	if err != nil {
		t.Fatalf("NewCollator: %v", err)
	}

	samples := []dataset.Sample{
		makeSample(t, 4, 4, 16, 3, 0),
		makeSample(t, 3, 4, 16, 3, 0), // wrong feature dimension
	}
	_, err = c.Collate(context.Background(), samples)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("Collate error = %v, want ErrShapeMismatch", err)
	}
}

func TestCollate_Empty(t *testing.T) {
	c, err := NewCollator(CollatorOptions{NumMels: 2, HopLength: 4})
	if err != nil {
		t.Fatalf("NewCollator: %v", err)
	}
	if _, err := c.Collate(context.Background(), nil); err == nil {
		t.Error("Collate(nil) succeeded, want error")
	}
}

func TestCollate_Idempotent(t *testing.T) {
	c, err := NewCollator(CollatorOptions{
		NumMels:   2,
		HopLength: 4,
		Codec:     &fakeCodec{hop: 8, dim: 2},
	})
	if err != nil {
		t.Fatalf("NewCollator: %v", err)
	}

	samples := []dataset.Sample{
		makeSample(t, 2, 5, 20, 4, 0),
		makeSample(t, 2, 3, 12, 2, 0),
	}

	a, err := c.Collate(context.Background(), samples)
	if err != nil {
		t.Fatalf("Collate: %v", err)
	}
	b, err := c.Collate(context.Background(), samples)
	if err != nil {
		t.Fatalf("Collate: %v", err)
	}

	check := func(name string, x, y []float32) {
		t.Helper()
		if fmt.Sprint(x) != fmt.Sprint(y) {
			t.Errorf("%s differs between identical collations", name)
		}
	}
	check("mels", a.Mels.RawData(), b.Mels.RawData())
	check("waveforms", a.Waveforms.RawData(), b.Waveforms.RawData())
	check("codes", a.Codes.RawData(), b.Codes.RawData())
}
