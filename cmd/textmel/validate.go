package main

import (
	"fmt"
	"os"

	"github.com/example/go-textmel/internal/dataset"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse the filelists and report record counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			for _, split := range []struct {
				name string
				path string
			}{
				{"train", cfg.Data.TrainFilelist},
				{"valid", cfg.Data.ValidFilelist},
			} {
				if split.path == "" {
					continue
				}
				s, err := dataset.NewSplit(split.path, cfg)
				if err != nil {
					return fmt.Errorf("%s: %w", split.name, err)
				}
				_, _ = fmt.Fprintf(os.Stdout, "%s: %d records\n", split.name, s.Len())
			}
			_, _ = fmt.Fprintln(os.Stdout, "ok")

			return nil
		},
	}

	return cmd
}
