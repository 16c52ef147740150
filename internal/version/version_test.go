package version

import "testing"

func TestInfo(t *testing.T) {
	oldVersion, oldSHA := Version, GitSHA
	defer func() { Version, GitSHA = oldVersion, oldSHA }()
	Version, GitSHA = "v0.3.0", "abc123"

	info := Get()
	if info.Version != "v0.3.0" || info.GitSHA != "abc123" || info.BuildTime != BuildTime {
		t.Errorf("Get() = %+v", info)
	}
	expected := "platetemp v0.3.0\ncommit: abc123\nbuilt: " + BuildTime + "\n"
	if got := info.String(); got != expected {
		t.Errorf("String() = %q, want %q", got, expected)
	}
}
