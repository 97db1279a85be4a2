package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/keizerzilla/latin/internal/registration"
)

// NewRegisterCmd builds the command that aligns every scan of a subject
// tree to its subject's neutral reference.
func NewRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Align scans to their subject's neutral reference",
		Long: `Align every scan to the neutral sample-0 scan of the same subject using
ICP on the nose region, then write the transformed scans and landmarks to
mirrored output trees.

Examples:
  latin register --clouds data/clouds --landmarks data/lm \
                 --out-clouds aligned/clouds --out-landmarks aligned/lm`,
		RunE: runRegister,
	}
	cmd.Flags().String("clouds", "", "Root of the per-subject scan folders")
	cmd.Flags().String("landmarks", "", "Root of the mirrored landmark folders")
	cmd.Flags().String("out-clouds", "", "Output root for aligned scans")
	cmd.Flags().String("out-landmarks", "", "Output root for aligned landmarks")
	return cmd
}

func runRegister(cmd *cobra.Command, args []string) error {
	if err := requireFlags(cmd, "clouds", "landmarks", "out-clouds", "out-landmarks"); err != nil {
		return err
	}
	var l registration.Layout
	l.Clouds, _ = cmd.Flags().GetString("clouds")
	l.Landmarks, _ = cmd.Flags().GetString("landmarks")
	l.OutClouds, _ = cmd.Flags().GetString("out-clouds")
	l.OutLandmarks, _ = cmd.Flags().GetString("out-landmarks")

	cfg := Config()
	b := registration.NewBatch(registration.NewAligner(registration.OptionsFromConfig(cfg)), cfg.GetWorkers())
	rep, err := b.Run(cmd.Context(), l)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "aligned=%d references=%d failed=%d elapsed=%s\n",
		rep.Aligned, rep.References, len(rep.Failures), rep.Elapsed)
	if n := len(rep.Failures); n > 0 {
		pterm.Warning.WithWriter(out).Printfln("%d scans skipped (%d missing reference, %d degenerate region, %d other)",
			n, rep.Count(registration.ErrMissingReference), rep.Count(registration.ErrDegenerateRegion),
			n-rep.Count(registration.ErrMissingReference)-rep.Count(registration.ErrDegenerateRegion))
	}
	return nil
}
