// Package scan implements the Bosphorus-style sample naming scheme shared by
// registration and feature extraction.
//
// A scan file is named
//
//	bs<subject>_<type>_<condition>_<sample>.<ext>
//
// e.g. bs012_E_HAPPY_0.pcd or bs000_N_N_1.xyz.
package scan

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/cockroachdb/errors"
)

// ErrInvalidName is returned when a filename does not match the naming grammar.
var ErrInvalidName = errors.New("invalid scan name")

// ScanType is the categorical capture condition encoded in a filename.
type ScanType string

const (
	Neutral    ScanType = "N"
	Expression ScanType = "E"
	UpperFAU   ScanType = "UFAU"
	LowerFAU   ScanType = "LFAU"
	CombinedAU ScanType = "CAU"
	Occlusion  ScanType = "O"
)

// ScanTypes lists every recognised type in filename-token form.
var ScanTypes = []ScanType{Neutral, Expression, UpperFAU, LowerFAU, CombinedAU, Occlusion}

// Valid reports whether t is one of the recognised scan types.
func (t ScanType) Valid() bool {
	for _, known := range ScanTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsNonNeutral reports whether t is an expression or action-unit scan.
// Occlusions are not included.
func (t ScanType) IsNonNeutral() bool {
	switch t {
	case Expression, UpperFAU, LowerFAU, CombinedAU:
		return true
	}
	return false
}

// Supported point file extensions.
const (
	ExtXYZ = "xyz"
	ExtPCD = "pcd"
)

// ReferenceCondition is the condition code of the canonical neutral scan.
const ReferenceCondition = "N"

// Identity identifies one scan of one subject.
type Identity struct {
	Subject   int
	Type      ScanType
	Condition string
	Sample    int
}

var namePattern = regexp.MustCompile(`^bs(\d+)_([A-Za-z0-9]+)_([A-Za-z0-9]+)_(\d+)\.(xyz|pcd)$`)

// Parse extracts the identity and extension from a filename. Directory
// components are ignored.
func Parse(name string) (Identity, string, error) {
	base := filepath.Base(name)
	m := namePattern.FindStringSubmatch(base)
	if m == nil {
		return Identity{}, "", errors.Wrapf(ErrInvalidName, "%q", base)
	}

	subject, err := strconv.Atoi(m[1])
	if err != nil {
		return Identity{}, "", errors.Wrapf(ErrInvalidName, "%q: subject: %v", base, err)
	}
	sample, err := strconv.Atoi(m[4])
	if err != nil {
		return Identity{}, "", errors.Wrapf(ErrInvalidName, "%q: sample: %v", base, err)
	}

	tp := ScanType(m[2])
	if !tp.Valid() {
		return Identity{}, "", errors.Wrapf(ErrInvalidName, "%q: unknown scan type %q", base, m[2])
	}

	return Identity{
		Subject:   subject,
		Type:      tp,
		Condition: m[3],
		Sample:    sample,
	}, m[5], nil
}

// Filename formats the identity back into the naming grammar. Subjects are
// zero-padded to three digits.
func (id Identity) Filename(ext string) string {
	return fmt.Sprintf("bs%03d_%s_%s_%d.%s", id.Subject, id.Type, id.Condition, id.Sample, ext)
}

// SubjectDir is the per-subject folder name used by the scan trees.
func (id Identity) SubjectDir() string {
	return fmt.Sprintf("bs%03d", id.Subject)
}

// Reference returns the identity of the subject's canonical neutral scan.
func (id Identity) Reference() Identity {
	return Identity{
		Subject:   id.Subject,
		Type:      Neutral,
		Condition: ReferenceCondition,
		Sample:    0,
	}
}

// ReferenceFilename names the canonical neutral scan inside a subject
// folder. The subject token is taken from the folder name as is, so trees
// without zero padding (bs1/bs1_N_N_0.pcd) resolve too.
func ReferenceFilename(subjectDir, ext string) string {
	return fmt.Sprintf("%s_%s_%s_0.%s", subjectDir, Neutral, ReferenceCondition, ext)
}

// IsReference reports whether id is the subject's canonical neutral scan.
func (id Identity) IsReference() bool {
	return id == id.Reference()
}

func (id Identity) String() string {
	return fmt.Sprintf("bs%03d/%s/%s/%d", id.Subject, id.Type, id.Condition, id.Sample)
}
