package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/example/go-textmel/internal/pipeline"
	"github.com/spf13/cobra"
)

type splitStats struct {
	Split      string `json:"split"`
	Records    int    `json:"records"`
	Batches    int    `json:"batches"`
	Samples    int    `json:"samples"`
	MaxFrames  int64  `json:"max_mel_frames"`
	MaxSymbols int64  `json:"max_symbols"`
}

func newStatsCmd() *cobra.Command {
	var (
		split      string
		maxBatches int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Iterate one epoch and report batch statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			p := pipeline.New(cfg)
			defer p.Close()
			if err := p.Setup(); err != nil {
				return err
			}

			var (
				it  *pipeline.BatchIter
				out splitStats
			)
			switch split {
			case "train":
				it, err = p.TrainBatches()
				out.Records = p.Train().Len()
			case "valid":
				it, err = p.ValidBatches()
				out.Records = p.Valid().Len()
			default:
				return fmt.Errorf("unknown split %q (want train|valid)", split)
			}
			if err != nil {
				return err
			}
			out.Split = split

			for it.Next(cmd.Context()) {
				b := it.Batch()
				out.Batches++
				out.Samples += b.Size()
				if frames := b.Mels.Dim(2); frames > out.MaxFrames {
					out.MaxFrames = frames
				}
				if syms := b.Symbols.Dim(1); syms > out.MaxSymbols {
					out.MaxSymbols = syms
				}
				if maxBatches > 0 && out.Batches >= maxBatches {
					break
				}
			}
			if err := it.Err(); err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")

			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&split, "split", "valid", "Split to iterate (train|valid)")
	cmd.Flags().IntVar(&maxBatches, "max-batches", 0, "Stop after this many batches (0 = full epoch)")

	return cmd
}
