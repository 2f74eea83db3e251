package encoder

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"testing"
)

type recordedCommand struct {
	name string
	args []string
}

func newTestCLI(s Settings, installed map[string]bool, runErr error) (*CLI, *[]recordedCommand) {
	var calls []recordedCommand
	c := &CLI{
		settings: s,
		lookPath: func(file string) (string, error) {
			if installed[file] {
				return "/usr/bin/" + file, nil
			}
			return "", exec.ErrNotFound
		},
		run: func(_ context.Context, name string, args ...string) error {
			calls = append(calls, recordedCommand{name: name, args: args})
			return runErr
		},
	}
	return c, &calls
}

func TestCLIAvailable(t *testing.T) {
	s := DefaultSettings()

	tests := []struct {
		name      string
		installed map[string]bool
		codec     Codec
		expected  bool
	}{
		{name: "cwebp installed", installed: map[string]bool{"cwebp": true}, codec: CodecWebP, expected: true},
		{name: "cwebp missing", installed: map[string]bool{"avifenc": true}, codec: CodecWebP, expected: false},
		{name: "avifenc installed", installed: map[string]bool{"avifenc": true}, codec: CodecAVIF, expected: true},
		{name: "unknown codec", installed: map[string]bool{"cwebp": true}, codec: Codec("jxl"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCLI(s, tt.installed, nil)
			if got := c.Available(tt.codec); got != tt.expected {
				t.Errorf("Available(%s) = %v, want %v", tt.codec, got, tt.expected)
			}
		})
	}
}

func TestCLIWebPArguments(t *testing.T) {
	s := DefaultSettings()
	s.WebP = WebPSettings{Quality: 82, FilterStrength: 60, AutoFilter: true}

	tests := []struct {
		name     string
		width    int
		auto     bool
		expected []string
	}{
		{
			name:  "full size with auto filter",
			width: 0,
			auto:  true,
			expected: []string{
				"-quiet", "-q", "82", "-alpha_q", "60", "-af",
				"-metadata", "icc", "in.jpg", "-o", "out.webp",
			},
		},
		{
			name:  "resized without auto filter",
			width: 320,
			auto:  false,
			expected: []string{
				"-quiet", "-resize", "320", "0", "-q", "82", "-alpha_q", "60",
				"-metadata", "icc", "in.jpg", "-o", "out.webp",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.WebP.AutoFilter = tt.auto
			c, calls := newTestCLI(s, map[string]bool{"cwebp": true}, nil)

			ok, err := c.Transcode(context.Background(), Request{
				Source: "in.jpg", Dest: "out.webp", Width: tt.width, Codec: CodecWebP,
			})
			if err != nil || !ok {
				t.Fatalf("Transcode() = %v, %v; want true, nil", ok, err)
			}
			if len(*calls) != 1 {
				t.Fatalf("expected 1 command, got %d", len(*calls))
			}
			got := (*calls)[0]
			if got.name != "/usr/bin/cwebp" {
				t.Errorf("command = %s, want /usr/bin/cwebp", got.name)
			}
			if !reflect.DeepEqual(got.args, tt.expected) {
				t.Errorf("args = %v\nwant %v", got.args, tt.expected)
			}
		})
	}
}

func TestCLIAVIF(t *testing.T) {
	s := DefaultSettings()
	s.AVIF = AVIFSettings{Quality: 100, Speed: 4}

	t.Run("full size", func(t *testing.T) {
		c, calls := newTestCLI(s, map[string]bool{"avifenc": true}, nil)
		ok, err := c.Transcode(context.Background(), Request{Source: "a.png", Dest: "a.avif", Codec: CodecAVIF})
		if err != nil || !ok {
			t.Fatalf("Transcode() = %v, %v; want true, nil", ok, err)
		}
		want := []string{"--min", "0", "--max", "0", "--speed", "4", "--jobs", "all", "a.png", "a.avif"}
		if !reflect.DeepEqual((*calls)[0].args, want) {
			t.Errorf("args = %v, want %v", (*calls)[0].args, want)
		}
	})

	t.Run("resize falls through", func(t *testing.T) {
		c, calls := newTestCLI(s, map[string]bool{"avifenc": true}, nil)
		ok, err := c.Transcode(context.Background(), Request{Source: "a.png", Dest: "a.avif", Width: 100, Codec: CodecAVIF})
		if ok || err != nil {
			t.Errorf("Transcode() = %v, %v; want false, nil", ok, err)
		}
		if len(*calls) != 0 {
			t.Errorf("expected no command, got %d", len(*calls))
		}
	})
}

func TestCLIUnavailableDoesNotRun(t *testing.T) {
	c, calls := newTestCLI(DefaultSettings(), nil, nil)

	ok, err := c.Transcode(context.Background(), Request{Source: "a.jpg", Dest: "a.webp", Codec: CodecWebP})
	if ok || err != nil {
		t.Errorf("Transcode() = %v, %v; want false, nil", ok, err)
	}
	if len(*calls) != 0 {
		t.Errorf("expected no command, got %d", len(*calls))
	}
}

func TestCLIRunFailure(t *testing.T) {
	runErr := errors.New("exit status 255")
	c, _ := newTestCLI(DefaultSettings(), map[string]bool{"cwebp": true}, runErr)

	ok, err := c.Transcode(context.Background(), Request{Source: "a.jpg", Dest: "a.webp", Codec: CodecWebP})
	if ok {
		t.Error("Transcode() reported success on a failed command")
	}
	if !errors.Is(err, runErr) {
		t.Errorf("error = %v, want wrapped %v", err, runErr)
	}
}

func TestAvifQuantizer(t *testing.T) {
	tests := []struct {
		quality  int
		expected int
	}{
		{100, 0},
		{0, 63},
		{50, 32},
		{150, 0},
		{-10, 63},
	}

	for _, tt := range tests {
		if got := avifQuantizer(tt.quality); got != tt.expected {
			t.Errorf("avifQuantizer(%d) = %d, want %d", tt.quality, got, tt.expected)
		}
	}
}
