package recognition

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// ErrClassifierFault marks a classifier that failed to fit, score or predict.
var ErrClassifierFault = errors.New("classifier fault")

// Classifier is a supervised model over standardised feature rows. Labels
// are subject ids.
type Classifier interface {
	Fit(x [][]float64, y []int) error
	Predict(x [][]float64) ([]int, error)
}

// Score returns the fraction of rows of x that c labels as y.
func Score(c Classifier, x [][]float64, y []int) (float64, error) {
	if len(x) == 0 {
		return 0, errors.Wrap(ErrClassifierFault, "empty test set")
	}
	if len(x) != len(y) {
		return 0, errors.Wrapf(ErrClassifierFault, "%d rows but %d labels", len(x), len(y))
	}
	pred, err := c.Predict(x)
	if err != nil {
		return 0, err
	}
	if len(pred) != len(y) {
		return 0, errors.Wrapf(ErrClassifierFault, "%d predictions for %d rows", len(pred), len(y))
	}
	hits := 0
	for i := range y {
		if pred[i] == y[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(y)), nil
}

// Factory builds a fresh, unfitted classifier.
type Factory func() Classifier

// Registry is an ordered set of named classifier factories. A harness run
// builds one instance per name, so classifiers never share fitted state.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Names returns the registered names in lexicographic order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered classifiers.
func (r *Registry) Len() int { return len(r.factories) }

// New builds the classifier registered under name.
func (r *Registry) New(name string) (Classifier, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, errors.Newf("classifier %q is not registered", name)
	}
	return f(), nil
}

// Subset returns a registry holding only names. An empty list keeps all.
func (r *Registry) Subset(names []string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	out := NewRegistry()
	for _, n := range names {
		f, ok := r.factories[n]
		if !ok {
			return nil, errors.WithHintf(errors.Newf("classifier %q is not registered", n),
				"known classifiers: %v", r.Names())
		}
		out.Register(n, f)
	}
	return out, nil
}

// Classifier names of the default registry.
const (
	KNNManhattan = "KNN_manhattan"
	KNNEuclidean = "KNN_euclidean"
	DMCManhattan = "DMC_manhattan"
	DMCEuclidean = "DMC_euclidean"
	GaussianNB   = "GaussianNB"
	SVMRadial    = "SVM_radial"
)

// SVMParams configures the RBF support vector classifier.
type SVMParams struct {
	C     float64
	Gamma float64
}

// DefaultSVMParams returns C=8, gamma=0.125.
func DefaultSVMParams() SVMParams {
	return SVMParams{C: 8, Gamma: 0.125}
}

// DefaultRegistry registers the nearest-neighbour, nearest-centroid, naive
// Bayes and RBF SVM classifiers.
func DefaultRegistry(svm SVMParams) *Registry {
	r := NewRegistry()
	r.Register(KNNManhattan, func() Classifier { return &KNN{Metric: Manhattan} })
	r.Register(KNNEuclidean, func() Classifier { return &KNN{Metric: Euclidean} })
	r.Register(DMCManhattan, func() Classifier { return &NearestCentroid{Metric: Manhattan} })
	r.Register(DMCEuclidean, func() Classifier { return &NearestCentroid{Metric: Euclidean} })
	r.Register(GaussianNB, func() Classifier { return &NaiveBayes{} })
	r.Register(SVMRadial, func() Classifier { return &SVC{C: svm.C, Gamma: svm.Gamma} })
	return r
}
