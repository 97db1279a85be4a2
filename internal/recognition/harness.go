package recognition

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/keizerzilla/latin/internal/monitoring"
	"github.com/keizerzilla/latin/internal/timeutil"
)

// ErrorNormName keys the single result a run returns when normalisation fails.
const ErrorNormName = "ERROR_NORM"

// ClassificationResult is the outcome of one classifier on one split.
type ClassificationResult struct {
	Classifier      string
	RecognitionRate float64 // fraction of test rows labelled correctly, in [0,1]
	TrueLabels      []int
	PredictedLabels []int // empty when prediction failed
	Elapsed         time.Duration
	Err             error // fit or score failure, nil on success
}

// HarnessConfig holds the collaborators of a harness run.
type HarnessConfig struct {
	Registry *Registry
	Workers  int
	Clock    timeutil.Clock
}

// Harness evaluates every registered classifier on a split. Each classifier
// is isolated: a failure or panic zeroes its rate without touching the others.
type Harness struct {
	Config HarnessConfig
}

// NewHarness returns a harness over registry, running sequentially on the
// real clock unless the config says otherwise.
func NewHarness(cfg HarnessConfig) *Harness {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Registry == nil {
		cfg.Registry = DefaultRegistry(DefaultSVMParams())
	}
	return &Harness{Config: cfg}
}

// Run sanitises and standardises the split and evaluates each classifier.
// When the scaler cannot be fitted the result holds only ErrorNormName.
// Classifiers not started before ctx is cancelled are recorded with rate 0
// and the context error.
func (h *Harness) Run(ctx context.Context, s Split) map[string]ClassificationResult {
	trainX := Sanitize(s.TrainX)
	testX := Sanitize(s.TestX)

	var scaler StandardScaler
	if err := scaler.Fit(trainX); err != nil {
		monitoring.Warnf("normalisation failed: %v", err)
		return map[string]ClassificationResult{ErrorNormName: {Classifier: ErrorNormName, Err: err}}
	}
	trainX, errTrain := scaler.Transform(trainX)
	testX, errTest := scaler.Transform(testX)
	if err := errors.CombineErrors(errTrain, errTest); err != nil {
		monitoring.Warnf("normalisation failed: %v", err)
		return map[string]ClassificationResult{ErrorNormName: {Classifier: ErrorNormName, Err: err}}
	}
	monitoring.Diagf("scaler fitted on %d rows x %d features, %d test rows", len(trainX), len(scaler.Mean), len(testX))

	var (
		mu      sync.Mutex
		results = make(map[string]ClassificationResult, h.Config.Registry.Len())
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.Config.Workers)
	for _, name := range h.Config.Registry.Names() {
		name := name
		g.Go(func() error {
			var res ClassificationResult
			if err := gctx.Err(); err != nil {
				res = ClassificationResult{Classifier: name, TrueLabels: append([]int(nil), s.TestY...), Err: err}
			} else {
				res = h.evaluate(name, trainX, s.TrainY, testX, s.TestY)
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (h *Harness) evaluate(name string, trainX [][]float64, trainY []int, testX [][]float64, testY []int) ClassificationResult {
	res := ClassificationResult{
		Classifier: name,
		TrueLabels: append([]int(nil), testY...),
	}
	c, err := h.Config.Registry.New(name)
	if err != nil {
		res.Err = errors.Mark(err, ErrClassifierFault)
		return res
	}

	start := h.Config.Clock.Now()
	rate, err := guard(func() (float64, error) {
		if err := c.Fit(trainX, trainY); err != nil {
			return 0, err
		}
		return Score(c, testX, testY)
	})
	res.Elapsed = h.Config.Clock.Since(start)
	if err != nil {
		monitoring.Opsf("%s failed: %v", name, err)
		res.Err = err
	} else {
		res.RecognitionRate = rate
	}

	pred, err := guard(func() ([]int, error) { return c.Predict(testX) })
	if err == nil {
		res.PredictedLabels = pred
	}
	monitoring.Diagf("%s rate=%.4f elapsed=%s", name, res.RecognitionRate, res.Elapsed)
	return res
}

// guard runs fn and turns a panic into an ErrClassifierFault.
func guard[T any](fn func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			out = zero
			err = errors.Wrapf(ErrClassifierFault, "panic: %s", fmt.Sprint(r))
		}
	}()
	return fn()
}
