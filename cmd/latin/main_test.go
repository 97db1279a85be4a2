package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keizerzilla/latin/internal/features"
	"github.com/keizerzilla/latin/internal/fsutil"
	"github.com/keizerzilla/latin/internal/monitoring"
	"github.com/keizerzilla/latin/internal/scan"
	"github.com/keizerzilla/latin/internal/testutil"
	"github.com/keizerzilla/latin/internal/version"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { monitoring.SetLogger(nil) })
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFeatures(t *testing.T, path string) {
	t.Helper()
	centres := [][]float64{{0, 0, 0}, {10, 0, 5}, {0, 10, -5}}
	var rows []features.FeatureVector
	for s, c := range centres {
		rows = append(rows,
			features.FeatureVector{Moments: c, Identity: scan.Identity{Subject: s, Type: scan.Neutral, Condition: "N", Sample: 0}},
			features.FeatureVector{
				Moments:  []float64{c[0] + 0.2, c[1] - 0.2, c[2] + 0.2},
				Identity: scan.Identity{Subject: s, Type: scan.Expression, Condition: "HAPPY", Sample: 0},
			},
		)
	}
	d, err := features.NewDataset(rows)
	require.NoError(t, err)
	require.NoError(t, d.Save(fsutil.OSFileSystem{}, path))
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version", "--json")
	require.NoError(t, err)
	var info version.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Version, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestClassify_StoresAndReports(t *testing.T) {
	dir := t.TempDir()
	feats := filepath.Join(dir, "neutral-zernike.dat")
	writeFeatures(t, feats)
	db := filepath.Join(dir, "results.db")
	reports := filepath.Join(dir, "reports")

	out, err := run(t, "classify", "--features", feats, "--protocol", "NonNeutralRank", "--db", db, "--report", reports)
	require.NoError(t, err)
	assert.Contains(t, out, "NonNeutralRank DMC_euclidean  100.00 \n")
	assert.Contains(t, out, "run ")

	for _, f := range []string{"neutral-zernike_best.png", "neutral-zernike_classifiers.png", "neutral-zernike.html"} {
		_, err := os.Stat(filepath.Join(reports, f))
		assert.NoError(t, err, f)
	}

	out, err = run(t, "runs", "--db", db, "--delete", "")
	require.NoError(t, err)
	assert.Contains(t, out, feats)
}

func TestClassify_AllProtocols(t *testing.T) {
	feats := filepath.Join(t.TempDir(), "f.dat")
	writeFeatures(t, feats)

	out, err := run(t, "classify", "--features", feats, "--protocol", "", "--db", "", "--report", "")
	require.NoError(t, err)
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if strings.HasSuffix(l, " ") && len(l) == 37 {
			lines = append(lines, l)
		}
	}
	assert.Equal(t, []string{
		"NeutralRank    DMC_euclidean  0.00   ",
		"NonNeutralRank DMC_euclidean  100.00 ",
		"ROC3           DMC_euclidean  100.00 ",
		"OcclusionRank  DMC_euclidean  0.00   ",
	}, lines)
}

func TestClassify_UnknownProtocol(t *testing.T) {
	feats := filepath.Join(t.TempDir(), "f.dat")
	writeFeatures(t, feats)
	_, err := run(t, "classify", "--features", feats, "--protocol", "CombinedRank")
	assert.Error(t, err)
}

func TestClassify_RequiresFeatures(t *testing.T) {
	_, err := run(t, "classify", "--features", "")
	assert.EqualError(t, err, "--features is required")
}

func TestExtract_WithFakeTool(t *testing.T) {
	t.Setenv("LATIN_TOOL_PATH", testutil.ToolScript(t, "echo '1.5 2 nan'"))

	dir := t.TempDir()
	clouds := filepath.Join(dir, "clouds")
	testutil.WriteTree(t, clouds, map[string]string{
		"bs000/bs000_N_N_0.pcd":     "x",
		"bs000/bs000_E_HAPPY_0.pcd": "x",
		"bs001/bs001_N_N_0.pcd":     "x",
		"bs001/readme.pcd":          "x",
	})
	outFile := filepath.Join(dir, "out.dat")

	out, err := run(t, "extract", "--dataset", clouds, "--out", outFile, "--sweep=false")
	require.NoError(t, err)
	assert.Contains(t, out, "extracted=3 skipped=1 failed=0")

	d, err := features.Load(fsutil.OSFileSystem{}, outFile)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Len())
	assert.Equal(t, 3, d.Width())
}

func TestExtract_MissingToolIsFatal(t *testing.T) {
	t.Setenv("LATIN_TOOL_PATH", filepath.Join(t.TempDir(), "missing-tool"))
	_, err := run(t, "extract", "--dataset", t.TempDir(), "--out", "x.dat", "--sweep=false")
	assert.Error(t, err)
}

func TestConfigFileErrors(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "nope.ini"), "version")
	assert.Error(t, err)
}

// Every root gets its own subcommands, so --config still reaches Setup
// after earlier trees have been executed.
func TestConfigFlagHonouredAcrossRoots(t *testing.T) {
	_, err := run(t, "version")
	require.NoError(t, err)

	bad := filepath.Join(t.TempDir(), "latin.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("workers: 0\n"), 0o644))
	for i := 0; i < 2; i++ {
		_, err := run(t, "--config", bad, "version")
		assert.Error(t, err, "run %d", i)
	}

	_, err = run(t, "version")
	assert.NoError(t, err)
}
