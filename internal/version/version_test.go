package version

import "testing"

func withBuildInfo(t *testing.T, v, c, d string) {
	t.Helper()
	oldVersion, oldCommit, oldDate := version, commit, date
	version, commit, date = v, c, d
	t.Cleanup(func() { version, commit, date = oldVersion, oldCommit, oldDate })
}

func TestDefaults(t *testing.T) {
	if GetVersion() == "" || GetCommit() == "" || GetDate() == "" {
		t.Fatalf("build info must have non-empty defaults: %q %q %q", GetVersion(), GetCommit(), GetDate())
	}
}

func TestGetters_ReflectLdflags(t *testing.T) {
	withBuildInfo(t, "1.4.0", "abc1234", "2026-04-01")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "version", got: GetVersion(), want: "1.4.0"},
		{name: "commit", got: GetCommit(), want: "abc1234"},
		{name: "date", got: GetDate(), want: "2026-04-01"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Fatalf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestString(t *testing.T) {
	withBuildInfo(t, "1.4.0", "abc1234", "2026-04-01")

	want := "shop-engine version=1.4.0 commit=abc1234 date=2026-04-01"
	if got := String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
