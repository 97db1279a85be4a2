package cloud

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/golang/geo/r3"

	"github.com/keizerzilla/latin/internal/fsutil"
)

// Format identifies an on-disk point file format.
type Format string

const (
	FormatXYZ Format = "xyz"
	FormatPCD Format = "pcd"
)

// ErrUnsupportedFormat is returned for unknown extensions and binary PCD data.
var ErrUnsupportedFormat = errors.New("unsupported point file format")

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case string(FormatXYZ):
		return FormatXYZ, nil
	case string(FormatPCD):
		return FormatPCD, nil
	}
	return "", errors.Wrapf(ErrUnsupportedFormat, "%s", path)
}

// ReadPoints loads the points of an XYZ or ASCII PCD file.
func ReadPoints(fsys fsutil.FileSystem, path string) ([]r3.Vector, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := fsys.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var pts []r3.Vector
	switch format {
	case FormatPCD:
		pts, err = DecodePCD(f)
	default:
		pts, err = DecodeXYZ(f)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return pts, nil
}

// ReadCloud loads a point cloud file.
func ReadCloud(fsys fsutil.FileSystem, path string) (PointCloud, error) {
	pts, err := ReadPoints(fsys, path)
	if err != nil {
		return PointCloud{}, err
	}
	return PointCloud{Points: pts}, nil
}

// ReadLandmarks loads a landmark file. Landmark files share the cloud formats.
func ReadLandmarks(fsys fsutil.FileSystem, path string) (LandmarkSet, error) {
	pts, err := ReadPoints(fsys, path)
	if err != nil {
		return LandmarkSet{}, err
	}
	return LandmarkSet{Points: pts}, nil
}

// WritePoints writes pts as ASCII in the format implied by path.
func WritePoints(fsys fsutil.FileSystem, path string, pts []r3.Vector) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	w, err := fsys.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}

	bw := bufio.NewWriter(w)
	switch format {
	case FormatPCD:
		err = EncodePCD(bw, pts)
	default:
		err = EncodeXYZ(bw, pts)
	}
	if err == nil {
		err = bw.Flush()
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// DecodeXYZ reads whitespace separated "x y z" lines. Extra columns are
// ignored; blank lines and lines starting with '#' are skipped.
func DecodeXYZ(r io.Reader) ([]r3.Vector, error) {
	var pts []r3.Vector
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		p, err := parseXYZFields(strings.Fields(text), 0, 1, 2)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		pts = append(pts, p)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return pts, nil
}

// EncodeXYZ writes one "x y z" line per point.
func EncodeXYZ(w io.Writer, pts []r3.Vector) error {
	for _, p := range pts {
		if _, err := fmt.Fprintf(w, "%s %s %s\n", formatCoord(p.X), formatCoord(p.Y), formatCoord(p.Z)); err != nil {
			return err
		}
	}
	return nil
}

type pcdHeader struct {
	fields []string
	counts []int
	points int
	data   string
}

// column returns the ASCII column index of a named scalar field.
func (h pcdHeader) column(name string) (int, bool) {
	col := 0
	for i, f := range h.fields {
		if f == name {
			return col, true
		}
		if i < len(h.counts) {
			col += h.counts[i]
		} else {
			col++
		}
	}
	return 0, false
}

// DecodePCD reads an ASCII PCD file (v0.6/v0.7). Only the x, y and z fields
// are kept.
func DecodePCD(r io.Reader) ([]r3.Vector, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var h pcdHeader
	h.points = -1
	line := 0
	for h.data == "" && sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		parts := strings.Fields(text)
		key, vals := strings.ToUpper(parts[0]), parts[1:]
		switch key {
		case "FIELDS":
			h.fields = vals
		case "COUNT":
			h.counts = make([]int, len(vals))
			for i, v := range vals {
				n, err := strconv.Atoi(v)
				if err != nil || n < 1 {
					return nil, errors.Newf("line %d: bad COUNT %q", line, v)
				}
				h.counts[i] = n
			}
		case "POINTS":
			if len(vals) != 1 {
				return nil, errors.Newf("line %d: bad POINTS", line)
			}
			n, err := strconv.Atoi(vals[0])
			if err != nil || n < 0 {
				return nil, errors.Newf("line %d: bad POINTS %q", line, vals[0])
			}
			h.points = n
		case "DATA":
			if len(vals) != 1 {
				return nil, errors.Newf("line %d: bad DATA", line)
			}
			h.data = strings.ToLower(vals[0])
		case "VERSION", "SIZE", "TYPE", "WIDTH", "HEIGHT", "VIEWPOINT":
		default:
			return nil, errors.Newf("line %d: unexpected header key %q", line, parts[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if h.data == "" {
		return nil, errors.New("missing DATA line")
	}
	if h.data != "ascii" {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "PCD DATA %s", h.data)
	}

	xc, okx := h.column("x")
	yc, oky := h.column("y")
	zc, okz := h.column("z")
	if !okx || !oky || !okz {
		return nil, errors.Newf("PCD fields %v lack x, y or z", h.fields)
	}

	var pts []r3.Vector
	if h.points > 0 {
		pts = make([]r3.Vector, 0, h.points)
	}
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		p, err := parseXYZFields(strings.Fields(text), xc, yc, zc)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		pts = append(pts, p)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if h.points >= 0 && len(pts) != h.points {
		return nil, errors.Newf("PCD declares %d points, found %d", h.points, len(pts))
	}
	return pts, nil
}

// EncodePCD writes an ASCII PCD v0.7 file with double precision x y z fields.
func EncodePCD(w io.Writer, pts []r3.Vector) error {
	n := len(pts)
	header := "# .PCD v0.7 - Point Cloud Data file format\n" +
		"VERSION 0.7\n" +
		"FIELDS x y z\n" +
		"SIZE 8 8 8\n" +
		"TYPE F F F\n" +
		"COUNT 1 1 1\n" +
		fmt.Sprintf("WIDTH %d\n", n) +
		"HEIGHT 1\n" +
		"VIEWPOINT 0 0 0 1 0 0 0\n" +
		fmt.Sprintf("POINTS %d\n", n) +
		"DATA ascii\n"
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	return EncodeXYZ(w, pts)
}

func parseXYZFields(fields []string, xc, yc, zc int) (r3.Vector, error) {
	maxCol := xc
	if yc > maxCol {
		maxCol = yc
	}
	if zc > maxCol {
		maxCol = zc
	}
	if len(fields) <= maxCol {
		return r3.Vector{}, errors.Newf("expected at least %d columns, got %d", maxCol+1, len(fields))
	}
	var v [3]float64
	for i, c := range [3]int{xc, yc, zc} {
		f, err := strconv.ParseFloat(fields[c], 64)
		if err != nil {
			return r3.Vector{}, errors.Wrapf(err, "column %d", c)
		}
		v[i] = f
	}
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
