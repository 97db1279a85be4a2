package features

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/keizerzilla/latin/internal/fsutil"
	"github.com/keizerzilla/latin/internal/scan"
)

// Metadata column names that follow the moment columns.
const (
	ColSample  = "sample"
	ColSubject = "subject"
	ColType    = "tp"
	ColExpr    = "exp"
)

// ErrWidthMismatch is returned for a row whose moment count differs from the
// dataset width.
var ErrWidthMismatch = errors.New("moment column count mismatch")

// FeatureVector is one extracted cloud: its moments and its identity.
type FeatureVector struct {
	Moments  []float64
	Identity scan.Identity
}

// Dataset is a feature table with a fixed moment width. The width is taken
// from the first row added.
type Dataset struct {
	width int
	rows  []FeatureVector
}

// NewDataset builds a dataset from rows, rejecting rows of a different width.
func NewDataset(rows []FeatureVector) (*Dataset, error) {
	d := &Dataset{}
	for _, r := range rows {
		if err := d.Add(r); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Add appends a row. The first row fixes the width; later rows must match.
func (d *Dataset) Add(fv FeatureVector) error {
	if len(fv.Moments) == 0 {
		return errors.Wrapf(ErrWidthMismatch, "%s has no moments", fv.Identity)
	}
	if len(d.rows) == 0 {
		d.width = len(fv.Moments)
	} else if len(fv.Moments) != d.width {
		return errors.Wrapf(ErrWidthMismatch, "%s has %d moments, dataset has %d",
			fv.Identity, len(fv.Moments), d.width)
	}
	d.rows = append(d.rows, FeatureVector{
		Moments:  append([]float64(nil), fv.Moments...),
		Identity: fv.Identity,
	})
	return nil
}

// Width returns the number of moment columns, 0 for an empty dataset.
func (d *Dataset) Width() int { return d.width }

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// Row returns row i. The moments slice must not be modified.
func (d *Dataset) Row(i int) FeatureVector { return d.rows[i] }

// Rows returns all rows. The slice must not be modified.
func (d *Dataset) Rows() []FeatureVector { return d.rows }

// Header returns m0..m<k-1> followed by the metadata columns.
func (d *Dataset) Header() []string {
	h := make([]string, 0, d.width+4)
	for i := 0; i < d.width; i++ {
		h = append(h, "m"+strconv.Itoa(i))
	}
	return append(h, ColSample, ColSubject, ColType, ColExpr)
}

// WriteCSV writes the header and one line per row.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Header()); err != nil {
		return err
	}
	rec := make([]string, d.width+4)
	for _, r := range d.rows {
		for i, m := range r.Moments {
			rec[i] = formatMoment(m)
		}
		id := r.Identity
		rec[d.width] = strconv.Itoa(id.Sample)
		rec[d.width+1] = strconv.Itoa(id.Subject)
		rec[d.width+2] = string(id.Type)
		rec[d.width+3] = id.Condition
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Save writes the dataset to path.
func (d *Dataset) Save(fsys fsutil.FileSystem, path string) error {
	w, err := fsys.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	err = d.WriteCSV(w)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return errors.Wrapf(err, "write %s", path)
}

// ReadCSV parses a feature table. Moment columns are every column before
// the trailing sample, subject, tp and exp columns.
func ReadCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	k := len(header) - 4
	if k < 1 {
		return nil, errors.Newf("header has %d columns, need at least 5", len(header))
	}
	for i, want := range []string{ColSample, ColSubject, ColType, ColExpr} {
		if got := strings.TrimSpace(header[k+i]); got != want {
			return nil, errors.Newf("header column %d is %q, want %q", k+i, got, want)
		}
	}

	d := &Dataset{}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		fv, err := parseRow(rec, k)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if err := d.Add(fv); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
	}
	return d, nil
}

// Load reads a feature table from path.
func Load(fsys fsutil.FileSystem, path string) (*Dataset, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	d, err := ReadCSV(f)
	return d, errors.Wrapf(err, "%s", path)
}

func parseRow(rec []string, k int) (FeatureVector, error) {
	moments := make([]float64, k)
	for i := 0; i < k; i++ {
		v, err := parseMoment(strings.TrimSpace(rec[i]))
		if err != nil {
			return FeatureVector{}, errors.Wrapf(err, "column m%d", i)
		}
		moments[i] = v
	}
	sample, err := strconv.Atoi(strings.TrimSpace(rec[k]))
	if err != nil {
		return FeatureVector{}, errors.Wrap(err, "sample")
	}
	subject, err := strconv.Atoi(strings.TrimSpace(rec[k+1]))
	if err != nil {
		return FeatureVector{}, errors.Wrap(err, "subject")
	}
	tp := scan.ScanType(strings.TrimSpace(rec[k+2]))
	if !tp.Valid() {
		return FeatureVector{}, errors.Wrapf(scan.ErrInvalidName, "scan type %q", tp)
	}
	return FeatureVector{
		Moments: moments,
		Identity: scan.Identity{
			Subject:   subject,
			Type:      tp,
			Condition: strings.TrimSpace(rec[k+3]),
			Sample:    sample,
		},
	}, nil
}

func formatMoment(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
