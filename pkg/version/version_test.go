package version

import "testing"

func TestStringFallbacks(t *testing.T) {
	origTag, origCommit, origDate := tag, commit, date
	t.Cleanup(func() { tag, commit, date = origTag, origCommit, origDate })

	tests := []struct {
		name       string
		tag        string
		commit     string
		wantString string
		wantFull   string
	}{
		{"dev", "", "unknown", "dev", "dev"},
		{"commit", "", "abc1234", "abc1234", "abc1234 built 2026-01-01"},
		{"tag", "v1.2.0", "abc1234", "v1.2.0", "v1.2.0 (abc1234) built 2026-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, commit, date = tt.tag, tt.commit, "2026-01-01"
			if got := String(); got != tt.wantString {
				t.Errorf("String() = %q, want %q", got, tt.wantString)
			}
			if got := Full(); got != tt.wantFull {
				t.Errorf("Full() = %q, want %q", got, tt.wantFull)
			}
			if got := UserAgent(); got != "soarclient/"+tt.wantString {
				t.Errorf("UserAgent() = %q", got)
			}
			if got := Get(); got.Version != tt.wantString || got.Commit != tt.commit {
				t.Errorf("Get() = %+v", got)
			}
		})
	}
}
