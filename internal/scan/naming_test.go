package scan

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		want    Identity
		wantExt string
	}{
		{"bs000_N_N_0.pcd", Identity{0, Neutral, "N", 0}, ExtPCD},
		{"bs012_E_HAPPY_2.xyz", Identity{12, Expression, "HAPPY", 2}, ExtXYZ},
		{"bs104_UFAU_AU2_0.pcd", Identity{104, UpperFAU, "AU2", 0}, ExtPCD},
		{"bs003_LFAU_LP9_1.pcd", Identity{3, LowerFAU, "LP9", 1}, ExtPCD},
		{"bs007_CAU_A22A25_0.pcd", Identity{7, CombinedAU, "A22A25", 0}, ExtPCD},
		{"/data/bs007/bs007_O_GLASSES_0.pcd", Identity{7, Occlusion, "GLASSES", 0}, ExtPCD},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ext, err := Parse(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
			assert.Equal(t, tt.wantExt, ext)
		})
	}
}

func TestParse_InvalidName(t *testing.T) {
	names := []string{
		"",
		"bs000_N_N_0",
		"bs000_N_N_0.ply",
		"xx000_N_N_0.pcd",
		"bs000_N_N.pcd",
		"bsabc_N_N_0.pcd",
		"bs000_YR_R10_0.pcd",
		"bs000_N_N_x.pcd",
		"bs000_N_N_0.pcd.bak",
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			_, _, err := Parse(name)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidName), "error %v should wrap ErrInvalidName", err)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for subject := 0; subject < 120; subject += 7 {
		for _, tp := range ScanTypes {
			for sample := 0; sample < 4; sample++ {
				id := Identity{Subject: subject, Type: tp, Condition: "COND1", Sample: sample}
				for _, ext := range []string{ExtXYZ, ExtPCD} {
					got, gotExt, err := Parse(id.Filename(ext))
					require.NoError(t, err)
					assert.Equal(t, id, got)
					assert.Equal(t, ext, gotExt)
				}
			}
		}
	}
}

func TestReference(t *testing.T) {
	id := Identity{Subject: 42, Type: Expression, Condition: "ANGER", Sample: 0}
	ref := id.Reference()

	assert.Equal(t, "bs042_N_N_0.pcd", ref.Filename(ExtPCD))
	assert.True(t, ref.IsReference())
	assert.False(t, id.IsReference())
	assert.False(t, Identity{Subject: 42, Type: Neutral, Condition: "N", Sample: 1}.IsReference())
	assert.Equal(t, "bs042", id.SubjectDir())
}

func TestReferenceFilename(t *testing.T) {
	assert.Equal(t, "bs042_N_N_0.pcd", ReferenceFilename("bs042", ExtPCD))
	assert.Equal(t, "bs1_N_N_0.xyz", ReferenceFilename("bs1", ExtXYZ))
}

func TestScanTypeIsNonNeutral(t *testing.T) {
	want := map[ScanType]bool{
		Neutral:    false,
		Expression: true,
		UpperFAU:   true,
		LowerFAU:   true,
		CombinedAU: true,
		Occlusion:  false,
	}
	for tp, expected := range want {
		assert.Equal(t, expected, tp.IsNonNeutral(), "type %s", tp)
	}
}
