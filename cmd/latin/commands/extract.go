package commands

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/keizerzilla/latin/internal/config"
	"github.com/keizerzilla/latin/internal/features"
	"github.com/keizerzilla/latin/internal/fsutil"
)

// NewExtractCmd builds the command that computes moment features for a scan tree.
func NewExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Compute moment features for every scan",
		Long: `Run the external moment tool on every scan and collect one feature row per
scan into a CSV table (m0..mk, sample, subject, tp, exp).

With --sweep, --dataset is a folder of scenario folders and every
(scenario, moment) pair is written to <results>/<scenario>/<subset>-<moment>.dat.

Examples:
  latin extract --dataset aligned/clouds --landmarks aligned/lm --out zernike.dat --moment zernike
  latin extract --sweep --dataset datasets --subset neutral --results results`,
		RunE: runExtract,
	}
	f := cmd.Flags()
	f.String("dataset", "", "Scan root (or scenario root with --sweep)")
	f.String("landmarks", "", "Landmark root passed to the tool as -n")
	f.String("out", "", "Output feature file")
	f.String("moment", "", "Moment family (overrides config)")
	f.String("cut", "", "Cut type (overrides config)")
	f.Bool("sweep", false, "Extract every scenario and moment family")
	f.String("subset", "neutral", "Subset folder inside each scenario (with --sweep)")
	f.String("results", "results", "Results root (with --sweep)")
	f.StringSlice("scenarios", features.DefaultScenarios, "Scenario folders (with --sweep)")
	f.StringSlice("moments", features.DefaultMoments, "Moment families (with --sweep)")
	return cmd
}

func newComputer(cfg *config.Config, moment, cut string) (*features.ExecMomentComputer, error) {
	c, err := features.NewExecMomentComputer(cfg.GetToolPath(), moment, cut, cfg.GetToolTimeout())
	if err != nil {
		return nil, err
	}
	if err := c.CheckTool(); err != nil {
		return nil, err
	}
	return c, nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := Config()
	flags := cmd.Flags()
	moment, _ := flags.GetString("moment")
	if moment == "" {
		moment = cfg.GetMoment()
	}
	cut, _ := flags.GetString("cut")
	if cut == "" {
		cut = cfg.GetCut()
	}
	dataset, _ := flags.GetString("dataset")
	if dataset == "" {
		return errors.New("--dataset is required")
	}

	// The tool is checked once up front: a missing binary stops the run
	// before any item starts.
	computer, err := newComputer(cfg, moment, cut)
	if err != nil {
		return err
	}
	e := features.NewExtractor(computer, cfg.GetWorkers())
	e.Ext = cfg.GetCloudExt()
	out := cmd.OutOrStdout()

	if sweep, _ := flags.GetBool("sweep"); sweep {
		var plan features.ScenarioPlan
		plan.Datasets = dataset
		plan.Subset, _ = flags.GetString("subset")
		plan.Results, _ = flags.GetString("results")
		plan.Scenarios, _ = flags.GetStringSlice("scenarios")
		plan.Moments, _ = flags.GetStringSlice("moments")
		results, err := features.RunScenarios(cmd.Context(), e, plan,
			func(m string) (features.MomentComputer, error) { return newComputer(cfg, m, cut) })
		for _, r := range results {
			if r.Err != nil {
				pterm.Error.WithWriter(out).Printfln("%s %s: %v", r.Scenario, r.Moment, r.Err)
				continue
			}
			fmt.Fprintf(out, "%s %s: %d rows, %.3fs/cloud -> %s\n",
				r.Scenario, r.Moment, r.Stats.Extracted, r.Stats.SecondsPerCloud(), r.Output)
		}
		return err
	}

	if err := requireFlags(cmd, "out"); err != nil {
		return err
	}
	landmarks, _ := flags.GetString("landmarks")
	output, _ := flags.GetString("out")
	d, stats, err := e.Extract(cmd.Context(), dataset, landmarks)
	if err != nil {
		return err
	}
	if d.Len() == 0 {
		return errors.Newf("no clouds extracted from %s", dataset)
	}
	if err := d.Save(fsutil.OSFileSystem{}, output); err != nil {
		return err
	}
	fmt.Fprintf(out, "extracted=%d skipped=%d failed=%d seconds/cloud=%.3f -> %s\n",
		stats.Extracted, stats.Skipped, stats.Failed, stats.SecondsPerCloud(), output)
	return nil
}
