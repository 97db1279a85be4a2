package security

import "testing"

func TestJoinWithin(t *testing.T) {
	tests := []struct {
		name      string
		root      string
		elems     []string
		want      string
		wantError bool
	}{
		{"subject folder", "/out/clouds", []string{"bs000", "bs000_E_ANGER_0.pcd"}, "/out/clouds/bs000/bs000_E_ANGER_0.pcd", false},
		{"relative root", "aligned", []string{"bs001"}, "aligned/bs001", false},
		{"root itself", "/out", []string{"."}, "/out", false},
		{"dot-dot escape", "/out/clouds", []string{"..", "landmarks", "x.pcd"}, "", true},
		{"nested escape", "/out", []string{"bs000", "../../etc/passwd"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JoinWithin(tt.root, tt.elems...)
			if (err != nil) != tt.wantError {
				t.Fatalf("JoinWithin() error = %v, wantError %v", err, tt.wantError)
			}
			if got != tt.want {
				t.Errorf("JoinWithin() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"":                      "unknown",
		"bosphorus-c40-zernike": "bosphorus-c40-zernike",
		"ROC3 (combined)":       "ROC3_combined",
		"../results/c40.dat":    "results_c40.dat",
		"***":                   "unknown",
	}
	for in, want := range tests {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
