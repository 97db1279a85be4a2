package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/keizerzilla/latin/internal/features"
	"github.com/keizerzilla/latin/internal/fsutil"
	"github.com/keizerzilla/latin/internal/monitoring"
	"github.com/keizerzilla/latin/internal/recognition"
	"github.com/keizerzilla/latin/internal/report"
	"github.com/keizerzilla/latin/internal/security"
	"github.com/keizerzilla/latin/internal/storage/sqlite"
)

// NewClassifyCmd builds the command that benchmarks the classifiers on a
// feature file.
func NewClassifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Benchmark classifiers under the rank protocols",
		Long: `Partition a feature file under the rank protocols, evaluate every configured
classifier and print the best one per protocol.

Examples:
  latin classify --features results/bosphorus-c60/neutral-zernike.dat
  latin classify --features zernike.dat --protocol ROC3 --db results.db --report reports`,
		RunE: runClassify,
	}
	f := cmd.Flags()
	f.String("features", "", "Feature CSV written by extract")
	f.String("protocol", "", "Run a single protocol (NeutralRank, NonNeutralRank, ROC3, OcclusionRank)")
	f.String("db", "", "SQLite database to store the run in")
	f.String("report", "", "Directory for PNG and HTML charts")
	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	if err := requireFlags(cmd, "features"); err != nil {
		return err
	}
	cfg := Config()
	flags := cmd.Flags()
	path, _ := flags.GetString("features")

	d, err := features.Load(fsutil.OSFileSystem{}, path)
	if err != nil {
		return err
	}
	registry, err := recognition.DefaultRegistry(recognition.SVMParams{C: cfg.GetSVMC(), Gamma: cfg.GetSVMGamma()}).
		Subset(cfg.GetClassifiers())
	if err != nil {
		return err
	}
	protocols := recognition.Protocols()
	if name, _ := flags.GetString("protocol"); name != "" {
		p, err := recognition.ProtocolByName(name)
		if err != nil {
			return err
		}
		protocols = []recognition.Protocol{p}
	}

	h := recognition.NewHarness(recognition.HarnessConfig{Registry: registry, Workers: cfg.GetWorkers()})
	summaries := recognition.RunAll(cmd.Context(), d, protocols, h)

	out := cmd.OutOrStdout()
	for _, s := range summaries {
		fmt.Fprintln(out, s)
	}
	table := pterm.TableData{{"Protocol", "Classifier", "Rate (%)", "Train", "Test"}}
	for _, s := range summaries {
		table = append(table, []string{
			s.Protocol, s.Classifier, fmt.Sprintf("%.2f", s.RatePercent),
			fmt.Sprint(s.TrainRows), fmt.Sprint(s.TestRows),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(table).WithWriter(out).Render(); err != nil {
		return err
	}

	if dbPath, _ := flags.GetString("db"); dbPath != "" {
		db, err := sqlite.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		id, err := sqlite.NewResultStore(db, nil).SaveRun(cmd.Context(), path, summaries)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "run %s stored in %s\n", id, dbPath)
	}

	if dir, _ := flags.GetString("report"); dir != "" {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if err := writeReports(dir, name, summaries); err != nil {
			return err
		}
		fmt.Fprintf(out, "reports written to %s\n", dir)
	}
	return nil
}

func writeReports(dir, name string, summaries []recognition.Summary) error {
	rp := report.NewRatePlotter(dir)
	for _, plot := range []func(string, []recognition.Summary) (string, error){rp.PlotBest, rp.PlotClassifiers} {
		file, err := plot(name, summaries)
		if err != nil {
			return err
		}
		monitoring.Diagf("wrote %s", file)
	}
	htmlPath, err := security.JoinWithin(dir, security.SanitizeFilename(name)+".html")
	if err != nil {
		return err
	}
	return report.WriteHTML(rp.FS, htmlPath, name, summaries)
}
