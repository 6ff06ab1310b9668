package main

import (
	"context"
	"fmt"
	"github.com/spf13/cobra"
	"go-ml.dev/pkg/dvcflow/model"
	"go-ml.dev/pkg/dvcflow/trainer"
	"go-ml.dev/pkg/zorros"
	"os"
	"strconv"
)

const (
	description = "fit an elastic net on a DVC versioned dataset and record the run in MLflow"
	usage       = "train [alpha] [l1_ratio]"
)

var rootCmd = &cobra.Command{
	Use:                usage,
	Short:              description,
	Long:               description,
	Args:               cobra.MaximumNArgs(2),
	DisableAutoGenTag:  true,
	DisableFlagParsing: true,
	SilenceUsage:       true,
	SilenceErrors:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, a := range args {
			if a == "-h" || a == "--help" {
				return cmd.Help()
			}
		}
		hp, err := hyperParams(args)
		if err != nil {
			return err
		}
		cfg, err := trainer.LoadConfig(trainer.NewViper())
		if err != nil {
			return err
		}
		_, err = trainer.Run(context.Background(), cfg, hp, cmd.OutOrStdout())
		return err
	},
}

/*
hyperParams parses positional alpha and l1_ratio, missing ones keep defaults
*/
func hyperParams(args []string) (model.HyperParams, error) {
	hp := model.DefaultHyperParams()
	dst := []*float64{&hp.Alpha, &hp.L1Ratio}
	names := []string{"alpha", "l1_ratio"}
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return hp, zorros.Errorf("usage: %v: %v must be a number, got %q", usage, names[i], a)
		}
		*dst[i] = v
	}
	return hp, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
