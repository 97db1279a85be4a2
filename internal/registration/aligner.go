// Package registration aligns a subject's facial scans to that subject's
// neutral reference scan. Only the nose region takes part in ICP; the
// resulting transform is then applied to the whole scan and its landmarks.
package registration

import (
	"github.com/cockroachdb/errors"

	"github.com/keizerzilla/latin/internal/cloud"
	"github.com/keizerzilla/latin/internal/config"
	"github.com/keizerzilla/latin/internal/monitoring"
)

var (
	// ErrMissingReference is returned when a subject has no neutral sample-0 scan.
	ErrMissingReference = errors.New("neutral reference scan missing")
	// ErrDegenerateRegion is returned when the nose region cannot be aligned.
	ErrDegenerateRegion = errors.New("degenerate alignment region")
	// ErrMissingLandmarks reports an absent or short landmark set. Errors
	// carrying it also match ErrDegenerateRegion.
	ErrMissingLandmarks = errors.New("landmarks missing")
)

// Options configures an Aligner.
type Options struct {
	CropRadius   float64
	NoseLandmark int
	ICP          ICPConfig
}

// DefaultOptions returns a 40 unit crop around landmark 13 and DefaultICPConfig.
func DefaultOptions() Options {
	return Options{
		CropRadius:   cloud.DefaultCropRadius,
		NoseLandmark: cloud.NoseTipIndex,
		ICP:          DefaultICPConfig(),
	}
}

// OptionsFromConfig maps the registration keys of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CropRadius:   cfg.GetCropRadius(),
		NoseLandmark: cfg.GetNoseLandmarkIndex(),
		ICP: ICPConfig{
			MaxCorrespondenceDistance: cfg.GetMaxCorrespondenceDistance(),
			MaxIterations:             cfg.GetICPMaxIterations(),
			RelativeFitness:           cfg.GetICPRelativeFitness(),
			RelativeRMSE:              cfg.GetICPRelativeRMSE(),
		},
	}
}

// Aligner registers scans against a neutral reference cloud.
type Aligner struct {
	opts Options
}

// NewAligner returns an Aligner using opts.
func NewAligner(opts Options) *Aligner {
	return &Aligner{opts: opts}
}

// Align crops the nose region of scan around its own nose landmark, runs
// ICP against reference and applies the estimated transform to the full
// scan and all its landmarks. The input scan is never modified.
func (a *Aligner) Align(reference cloud.PointCloud, scan cloud.Scan) (cloud.Scan, ICPResult, error) {
	if reference.Len() == 0 {
		return cloud.Scan{}, ICPResult{}, errors.Wrap(ErrMissingReference, "reference cloud is empty")
	}
	nose, err := scan.Landmarks.At(a.opts.NoseLandmark)
	if err != nil {
		return cloud.Scan{}, ICPResult{}, missingLandmarks(err)
	}

	region := cloud.CropSphere(scan.Cloud, nose, a.opts.CropRadius)
	if region.Len() == 0 {
		return cloud.Scan{}, ICPResult{}, errors.Wrapf(ErrDegenerateRegion,
			"no points within %.1f of nose tip", a.opts.CropRadius)
	}
	monitoring.Diagf("nose region: %d of %d points", region.Len(), scan.Cloud.Len())

	res, err := ICP(region, reference, a.opts.ICP)
	if err != nil {
		return cloud.Scan{}, res, err
	}

	aligned, err := scan.Transform(res.Transform)
	if err != nil {
		return cloud.Scan{}, res, errors.Mark(err, ErrDegenerateRegion)
	}
	return aligned, res, nil
}

func missingLandmarks(cause error) error {
	return errors.Mark(errors.Wrapf(ErrMissingLandmarks, "%v", cause), ErrDegenerateRegion)
}
