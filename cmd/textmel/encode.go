package main

import (
	"encoding/json"
	"os"

	"github.com/example/go-textmel/internal/audio"
	"github.com/example/go-textmel/internal/text"
	"github.com/spf13/cobra"
)

type encodeResult struct {
	Path     string  `json:"path"`
	Samples  int     `json:"samples"`
	Seconds  float64 `json:"seconds"`
	MelShape []int64 `json:"mel_shape"`
	Symbols  int     `json:"symbols,omitempty"`
}

func newEncodeCmd() *cobra.Command {
	var rawText string

	cmd := &cobra.Command{
		Use:   "encode <wav-file>",
		Short: "Encode one WAV file (and optional text) and print the resulting shapes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Unlike validate and stats, encode needs no filelists.
			cfg := activeCfg

			wave, err := audio.LoadFile(args[0], cfg.Mel.SampleRate)
			if err != nil {
				return err
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
				return err
			}
			mel, err := spec.Compute(wave)
			if err != nil {
				return err
			}
			mel, err = audio.Normalize(mel, cfg.Mel.Mean, cfg.Mel.Std)
			if err != nil {
				return err
			}

			out := encodeResult{
				Path:     args[0],
				Samples:  len(wave),
				Seconds:  float64(len(wave)) / float64(cfg.Mel.SampleRate),
				MelShape: mel.Shape(),
			}

			if rawText != "" {
				seq, err := text.ToSequence(rawText, cfg.Data.Cleaners)
				if err != nil {
					return err
				}
				if cfg.Data.AddBlank {
					seq = text.Intersperse(seq, text.PadID)
				}
				out.Symbols = len(seq)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")

			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&rawText, "text", "", "Optional transcript to encode alongside the audio")

	return cmd
}
