package encoder

import "testing"

func TestChainOrder(t *testing.T) {
	chain := Chain(DefaultSettings())

	want := []string{"cli", "vips", "software"}
	if len(chain) != len(want) {
		t.Fatalf("expected %d backends, got %d", len(want), len(chain))
	}
	for i, b := range chain {
		if b.Name() != want[i] {
			t.Errorf("backend %d = %s, want %s", i, b.Name(), want[i])
		}
	}
}

func TestChainDisable(t *testing.T) {
	s := DefaultSettings()
	s.Disable = []string{" CLI", "software"}

	chain := Chain(s)
	if len(chain) != 1 || chain[0].Name() != "vips" {
		names := make([]string, 0, len(chain))
		for _, b := range chain {
			names = append(names, b.Name())
		}
		t.Errorf("expected only vips, got %v", names)
	}
}

func TestSettingsDisabled(t *testing.T) {
	s := DefaultSettings()
	s.Disable = []string{" Vips "}

	tests := []struct {
		name string
		want bool
	}{
		{"vips", true},
		{"cli", false},
		{"software", false},
	}
	for _, tt := range tests {
		if got := s.Disabled(tt.name); got != tt.want {
			t.Errorf("Disabled(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSettingsQuality(t *testing.T) {
	s := DefaultSettings()
	s.WebP.Quality = 81
	s.AVIF.Quality = 42

	if got := s.Quality(CodecWebP); got != 81 {
		t.Errorf("webp quality = %d, want 81", got)
	}
	if got := s.Quality(CodecAVIF); got != 42 {
		t.Errorf("avif quality = %d, want 42", got)
	}
}
