package schema

import "testing"

func TestValidateTabID(t *testing.T) {
	cases := []struct {
		name  string
		id    TabID
		valid bool
	}{
		{"simple", "defaultTab", true},
		{"uuid", "9b2c6f1e-3f1a-4c55-9d3e-1a2b3c4d5e6f", true},
		{"numeric", "1712345678901", true},
		{"empty", "", false},
		{"space", "tab one", false},
		{"leading-space", " tab", false},
		{"trailing-space", "tab ", false},
		{"control", "tab\x00", false},
	}

	for _, tc := range cases {
		err := ValidateTabID(tc.id)
		if tc.valid && err != nil {
			t.Fatalf("case %q expected valid, got error: %v", tc.name, err)
		}
		if !tc.valid && err == nil {
			t.Fatalf("case %q expected error, got nil", tc.name)
		}
	}
}

func TestNormalizeProvider(t *testing.T) {
	cases := []struct {
		in    string
		want  ProviderName
		known bool
	}{
		{"openai", "openai", true},
		{" Anthropic ", "anthropic", true},
		{"custom-llm", "custom-llm", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, known := NormalizeProvider(tc.in)
		if got != tc.want || known != tc.known {
			t.Fatalf("NormalizeProvider(%q) = %q, %v; want %q, %v", tc.in, got, known, tc.want, tc.known)
		}
	}
}

func TestNormalizeThemeName(t *testing.T) {
	if got, ok := NormalizeThemeName("Night"); !ok || got != "dark" {
		t.Fatalf("expected dark, got %q ok=%v", got, ok)
	}
	if _, ok := NormalizeThemeName("solarized"); ok {
		t.Fatalf("expected solarized to be rejected")
	}
	themes := AvailableThemes()
	themes[0] = "mutated"
	if AvailableThemes()[0] != "light" {
		t.Fatalf("expected AvailableThemes to return a copy")
	}
}
