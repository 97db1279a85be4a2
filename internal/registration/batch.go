package registration

import (
	"context"
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
	"github.com/keizerzilla/latin/internal/security"
	"github.com/keizerzilla/latin/internal/timeutil"
)

// Layout names the four roots of a registration run. Each root holds one
// folder per subject (bs000, bs001, ...); landmark files carry the same
// name as their cloud.
type Layout struct {
	Clouds       string
	Landmarks    string
	OutClouds    string
	OutLandmarks string
}

// Failure records one scan that could not be registered.
type Failure struct {
	Path string
	Err  error
}

// Report summarises a batch run.
type Report struct {
	Aligned    int // scans registered with ICP
	References int // neutral sample-0 scans copied through unchanged
	Failures   []Failure
	Elapsed    time.Duration
}

// Count returns the number of failures matching target.
func (r Report) Count(target error) int {
	n := 0
	for _, f := range r.Failures {
		if errors.Is(f.Err, target) {
			n++
		}
	}
	return n
}

// Batch registers every scan of a subject tree against that subject's
// neutral reference. Per-scan failures are logged and recorded; only an
// unusable output root aborts the run.
type Batch struct {
	FS      fsutil.FileSystem
	Aligner *Aligner
	Workers int
	Clock   timeutil.Clock
}

// NewBatch returns a Batch on the OS file system.
func NewBatch(aligner *Aligner, workers int) *Batch {
	return &Batch{
		FS:      fsutil.OSFileSystem{},
		Aligner: aligner,
		Workers: workers,
		Clock:   timeutil.RealClock{},
	}
}

type item struct {
	subject string // folder name
	name    string
	id      scan.Identity
	err     error // parse failure
	ref     func() (cloud.PointCloud, error)
}

// Run walks l.Clouds and writes aligned clouds and landmarks under the
// output roots, mirroring the subject folders.
func (b *Batch) Run(ctx context.Context, l Layout) (Report, error) {
	start := b.Clock.Now()
	for _, root := range []string{l.OutClouds, l.OutLandmarks} {
		if err := b.FS.MkdirAll(root, 0o755); err != nil {
			return Report{}, errors.Wrapf(err, "create output root %s", root)
		}
	}

	subjects, err := b.FS.ReadDir(l.Clouds)
	if err != nil {
		return Report{}, errors.Wrapf(err, "read %s", l.Clouds)
	}

	var (
		rep   Report
		mu    sync.Mutex
		items []item
	)
	fail := func(path string, err error) {
		mu.Lock()
		rep.Failures = append(rep.Failures, Failure{Path: path, Err: err})
		mu.Unlock()
	}

	for _, s := range subjects {
		if !s.IsDir() {
			continue
		}
		its, err := b.subjectItems(l, s.Name())
		if err != nil {
			fail(filepath.Join(l.Clouds, s.Name()), err)
			monitoring.Warnf("%s: %v", s.Name(), err)
			continue
		}
		items = append(items, its...)
	}

	workers := b.Workers
	if workers < 1 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for _, it := range items {
		if ctx.Err() != nil {
			break
		}
		it := it
		g.Go(func() error {
			path := filepath.Join(l.Clouds, it.subject, it.name)
			copied, err := b.registerOne(l, it)
			if err != nil {
				fail(path, err)
				if errors.Is(err, ErrMissingReference) {
					monitoring.Warnf("%s skipped: %v", it.name, err)
				} else {
					monitoring.Opsf("%s failed: %v", it.name, err)
				}
				return nil
			}
			mu.Lock()
			if copied {
				rep.References++
			} else {
				rep.Aligned++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(rep.Failures, func(i, j int) bool { return rep.Failures[i].Path < rep.Failures[j].Path })
	rep.Elapsed = b.Clock.Since(start)
	monitoring.Opsf("registration done: aligned=%d references=%d failed=%d in %s",
		rep.Aligned, rep.References, len(rep.Failures), rep.Elapsed)
	return rep, ctx.Err()
}

// subjectItems lists the scans of one subject folder and prepares its
// output folders. The reference cloud is loaded at most once per extension.
func (b *Batch) subjectItems(l Layout, subject string) ([]item, error) {
	dir := filepath.Join(l.Clouds, subject)
	entries, err := b.FS.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", dir)
	}
	for _, root := range []string{l.OutClouds, l.OutLandmarks} {
		out, err := security.JoinWithin(root, subject)
		if err != nil {
			return nil, err
		}
		if err := b.FS.MkdirAll(out, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create %s", out)
		}
	}

	refs := make(map[string]func() (cloud.PointCloud, error))
	var items []item
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := cloud.FormatFromPath(e.Name()); err != nil {
			monitoring.Diagf("ignoring %s", filepath.Join(dir, e.Name()))
			continue
		}
		id, ext, err := scan.Parse(e.Name())
		it := item{subject: subject, name: e.Name(), id: id, err: err}
		if err == nil {
			if _, ok := refs[ext]; !ok {
				refPath := filepath.Join(dir, scan.ReferenceFilename(subject, ext))
				refs[ext] = sync.OnceValues(func() (cloud.PointCloud, error) {
					return b.loadReference(refPath)
				})
			}
			it.ref = refs[ext]
		}
		items = append(items, it)
	}
	return items, nil
}

func (b *Batch) loadReference(path string) (cloud.PointCloud, error) {
	if !b.FS.Exists(path) {
		return cloud.PointCloud{}, errors.Wrapf(ErrMissingReference, "%s", path)
	}
	ref, err := cloud.ReadCloud(b.FS, path)
	if err != nil {
		return cloud.PointCloud{}, errors.Mark(err, ErrMissingReference)
	}
	return ref, nil
}

// registerOne aligns one scan and writes its outputs. It reports whether the
// scan was the subject reference, which is copied through unchanged.
func (b *Batch) registerOne(l Layout, it item) (bool, error) {
	if it.err != nil {
		return false, it.err
	}
	cloudPath := filepath.Join(l.Clouds, it.subject, it.name)
	lmPath := filepath.Join(l.Landmarks, it.subject, it.name)

	var ref cloud.PointCloud
	if !it.id.IsReference() {
		r, err := it.ref()
		if err != nil {
			return false, err
		}
		ref = r
	}

	c, err := cloud.ReadCloud(b.FS, cloudPath)
	if err != nil {
		return false, err
	}
	lm, err := cloud.ReadLandmarks(b.FS, lmPath)
	if err != nil {
		return false, missingLandmarks(err)
	}
	s := cloud.Scan{Cloud: c, Landmarks: lm}

	out := s
	if !it.id.IsReference() {
		aligned, res, err := b.Aligner.Align(ref, s)
		if err != nil {
			return false, err
		}
		monitoring.Diagf("%s: fitness=%.4f rmse=%.4f iterations=%d converged=%t",
			it.name, res.Fitness, res.InlierRMSE, res.Iterations, res.Converged)
		out = aligned
	}

	if err := b.write(l, it, out); err != nil {
		return false, err
	}
	monitoring.Opsf("%s ok", it.name)
	return it.id.IsReference(), nil
}

func (b *Batch) write(l Layout, it item, s cloud.Scan) error {
	cloudOut, err := security.JoinWithin(l.OutClouds, it.subject, it.name)
	if err != nil {
		return err
	}
	lmOut, err := security.JoinWithin(l.OutLandmarks, it.subject, it.name)
	if err != nil {
		return err
	}
	if err := cloud.WritePoints(b.FS, cloudOut, s.Cloud.Points); err != nil {
		return err
	}
	return cloud.WritePoints(b.FS, lmOut, s.Landmarks.Points)
}
