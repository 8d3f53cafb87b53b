package endpoint

import "testing"

func TestResolve(t *testing.T) {
	cases := []struct {
		name     string
		mode     Mode
		opts     Options
		wantHTTP string
		wantWS   string
	}{
		{"dev-default", ModeDevelopment, Options{}, "http://localhost:3147", "ws://localhost:3147/ws"},
		{"dev-override", ModeDevelopment, Options{DevHost: "127.0.0.1", DevPort: 9000}, "http://127.0.0.1:9000", "ws://127.0.0.1:9000/ws"},
		{"prod-relative", ModeProduction, Options{}, "", "/ws"},
		{"prod-relative-base", ModeProduction, Options{BasePath: "app/"}, "/app", "/app/ws"},
		{"prod-https", ModeProduction, Options{Origin: "https://promptliano.example.com/"}, "https://promptliano.example.com", "wss://promptliano.example.com/ws"},
		{"prod-http-base", ModeProduction, Options{Origin: "http://10.0.0.2:8080", BasePath: "/pl", WSPath: "socket"}, "http://10.0.0.2:8080/pl", "ws://10.0.0.2:8080/pl/socket"},
	}
	for _, tc := range cases {
		got, err := Resolve(tc.mode, tc.opts)
		if err != nil {
			t.Fatalf("case %q: %v", tc.name, err)
		}
		if got.HTTPBase != tc.wantHTTP || got.WSURL != tc.wantWS {
			t.Fatalf("case %q: got %q %q want %q %q", tc.name, got.HTTPBase, got.WSURL, tc.wantHTTP, tc.wantWS)
		}
	}
}

func TestResolveRejectsBadOrigin(t *testing.T) {
	if _, err := Resolve(ModeProduction, Options{Origin: "ftp://example.com"}); err == nil {
		t.Fatalf("expected error for ftp origin")
	}
	if _, err := Resolve("staging", Options{}); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestBuildModeDefaultsToDevelopment(t *testing.T) {
	prev := buildMode
	t.Cleanup(func() { buildMode = prev })
	buildMode = ""
	if BuildMode() != ModeDevelopment {
		t.Fatalf("expected development by default")
	}
	buildMode = "prod"
	if BuildMode() != ModeProduction {
		t.Fatalf("expected production from ldflag")
	}
}
