package version

import (
	"runtime/debug"
	"strings"
	"testing"
	"time"
)

func stubBuildInfo(t *testing.T, info *debug.BuildInfo) {
	t.Helper()
	prev := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
	t.Cleanup(func() { readBuildInfo = prev })
}

func TestCurrentPrefersBuildVersion(t *testing.T) {
	old := buildVersion
	buildVersion = "v1.2.3+dirty"
	t.Cleanup(func() { buildVersion = old })

	if got := Current(); got != "v1.2.3" {
		t.Fatalf("expected build version without dirty suffix, got %q", got)
	}
	if got := Get().Version; got != "v1.2.3+dirty" {
		t.Fatalf("expected dirty suffix in info, got %q", got)
	}
}

func TestPseudoVersionFromVCS(t *testing.T) {
	ts := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	stubBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Path: "pkt.systems/statesync", Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "1234567890abcdef"},
			{Key: "vcs.time", Value: ts.Format(time.RFC3339)},
			{Key: "vcs.modified", Value: "true"},
		},
	})

	info := Get()
	if !strings.HasPrefix(info.Version, "v0.0.0-20250102030405-1234567890ab") || !strings.HasSuffix(info.Version, "+dirty") {
		t.Fatalf("unexpected version %q", info.Version)
	}
	if Current() != "v0.0.0-20250102030405-1234567890ab" {
		t.Fatalf("unexpected current version %q", Current())
	}
	if info.Revision != "1234567890abcdef" || !info.Modified || info.Module != "pkt.systems/statesync" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestUnknownWithoutBuildInfo(t *testing.T) {
	stubBuildInfo(t, nil)
	if got := Current(); got != "v0.0.0-unknown" {
		t.Fatalf("expected unknown version, got %q", got)
	}
	if Get().Module != defaultModule {
		t.Fatalf("expected default module")
	}
	if pseudoVersion(nil, true) != "" {
		t.Fatalf("expected empty pseudo version for nil build info")
	}
}
