package features

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/keizerzilla/latin/internal/cloud"
	"github.com/keizerzilla/latin/internal/fsutil"
	"github.com/keizerzilla/latin/internal/monitoring"
	"github.com/keizerzilla/latin/internal/scan"
	"github.com/keizerzilla/latin/internal/timeutil"
)

// Stats summarises an extraction batch.
type Stats struct {
	Extracted int // rows in the dataset
	Skipped   int // files whose names do not follow the scan grammar
	Failed    int // tool failures and width mismatches
	Elapsed   time.Duration
}

// SecondsPerCloud is the mean wall time per extracted cloud, 0 when nothing
// was extracted.
func (s Stats) SecondsPerCloud() float64 {
	if s.Extracted == 0 {
		return 0
	}
	return s.Elapsed.Seconds() / float64(s.Extracted)
}

// Extractor walks a subject tree and computes one feature row per cloud.
type Extractor struct {
	FS       fsutil.FileSystem
	Computer MomentComputer
	Workers  int
	Clock    timeutil.Clock
	Ext      string // cloud extension to pick up, "pcd" when empty
}

// NewExtractor returns an Extractor on the OS file system.
func NewExtractor(c MomentComputer, workers int) *Extractor {
	return &Extractor{
		FS:       fsutil.OSFileSystem{},
		Computer: c,
		Workers:  workers,
		Clock:    timeutil.RealClock{},
	}
}

type job struct {
	path string
	nose string
	id   scan.Identity
}

type outcome struct {
	job
	moments []float64
	err     error
}

// Extract computes moments for every cloud under root or root/<subject>/. When
// landmarks is not empty the matching landmark file is passed to the tool.
// Per-cloud failures are logged and counted; the dataset holds the rest,
// ordered by path.
func (e *Extractor) Extract(ctx context.Context, root, landmarks string) (*Dataset, Stats, error) {
	start := e.Clock.Now()
	jobs, skipped, err := e.collect(root, landmarks)
	if err != nil {
		return nil, Stats{}, err
	}
	stats := Stats{Skipped: skipped}

	workers := e.Workers
	if workers < 1 {
		workers = 1
	}
	results := make([]outcome, len(jobs))
	var (
		g    errgroup.Group
		mu   sync.Mutex
		done int
	)
	g.SetLimit(workers)
	for i, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		i, j := i, j
		g.Go(func() error {
			m, err := e.Computer.Compute(ctx, Request{Cloud: j.path, Nose: j.nose})
			results[i] = outcome{job: j, moments: m, err: err}
			if err != nil {
				monitoring.Opsf("%s failed: %v", filepath.Base(j.path), err)
				return nil
			}
			mu.Lock()
			done++
			n := done
			mu.Unlock()
			monitoring.Diagf("%d/%d %s ok", n, len(jobs), filepath.Base(j.path))
			return nil
		})
	}
	_ = g.Wait()

	d := &Dataset{}
	for _, r := range results {
		if r.path == "" {
			continue // not started, context cancelled
		}
		if r.err != nil {
			stats.Failed++
			continue
		}
		if err := d.Add(FeatureVector{Moments: r.moments, Identity: r.id}); err != nil {
			monitoring.Opsf("%s rejected: %v", filepath.Base(r.path), err)
			stats.Failed++
			continue
		}
		stats.Extracted++
	}
	stats.Elapsed = e.Clock.Since(start)
	monitoring.Opsf("extracted %d clouds (%d skipped, %d failed), %.6f s/cloud",
		stats.Extracted, stats.Skipped, stats.Failed, stats.SecondsPerCloud())
	return d, stats, ctx.Err()
}

// collect lists the clouds to extract in path order.
func (e *Extractor) collect(root, landmarks string) ([]job, int, error) {
	ext := e.Ext
	if ext == "" {
		ext = string(cloud.FormatPCD)
	}
	subjects, err := e.FS.ReadDir(root)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "read %s", root)
	}

	var jobs []job
	skipped := 0
	add := func(sub string, f fs.DirEntry) {
		if f.IsDir() || filepath.Ext(f.Name()) != "."+ext {
			return
		}
		id, _, err := scan.Parse(f.Name())
		if err != nil {
			monitoring.Diagf("skipping %s: %v", f.Name(), err)
			skipped++
			return
		}
		j := job{path: filepath.Join(root, sub, f.Name()), id: id}
		if landmarks != "" {
			j.nose = filepath.Join(landmarks, sub, f.Name())
		}
		jobs = append(jobs, j)
	}

	// Clouds may sit in per-subject folders or directly under root.
	for _, s := range subjects {
		if !s.IsDir() {
			add("", s)
			continue
		}
		dir := filepath.Join(root, s.Name())
		entries, err := e.FS.ReadDir(dir)
		if err != nil {
			monitoring.Warnf("%s: %v", dir, err)
			continue
		}
		for _, f := range entries {
			add(s.Name(), f)
		}
	}
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].path < jobs[b].path })
	return jobs, skipped, nil
}
