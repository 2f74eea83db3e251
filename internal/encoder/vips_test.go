package encoder

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

// NOTE: govips cannot restart libvips in the same process, so these tests
// never call ShutdownVips.

func writeTestJPEG(t *testing.T, dir string, width, height int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	path := filepath.Join(dir, "source.jpg")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create test image: %v", err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return path
}

// exifOrientation is an APP1 segment carrying only an orientation tag.
func exifOrientation(orientation byte) []byte {
	payload := []byte("Exif\x00\x00")
	payload = append(payload, "MM\x00\x2a\x00\x00\x00\x08"...)
	payload = append(payload, 0x00, 0x01)
	payload = append(payload, 0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, 0x00, orientation, 0x00, 0x00)
	payload = append(payload, 0x00, 0x00, 0x00, 0x00)

	n := len(payload) + 2
	return append([]byte{0xff, 0xe1, byte(n >> 8), byte(n)}, payload...)
}

// writeRotatedJPEG writes a width×height JPEG tagged to be displayed
// rotated 90 degrees clockwise.
func writeRotatedJPEG(t *testing.T, dir string, width, height int) string {
	t.Helper()

	src := writeTestJPEG(t, dir, width, height)
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	buf.Write(data[:2]) // SOI
	buf.Write(exifOrientation(6))
	buf.Write(data[2:])

	path := filepath.Join(dir, "rotated.jpg")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionAtLeast(t *testing.T) {
	tests := []struct {
		name     string
		major    int
		minor    int
		minimum  string
		expected bool
	}{
		{name: "equal", major: 8, minor: 10, minimum: "8.10", expected: true},
		{name: "newer minor", major: 8, minor: 15, minimum: "8.10", expected: true},
		{name: "older minor", major: 8, minor: 9, minimum: "8.10", expected: false},
		{name: "newer major", major: 9, minor: 0, minimum: "8.10", expected: true},
		{name: "older major", major: 7, minor: 99, minimum: "8.10", expected: false},
		{name: "patch ignored", major: 8, minor: 12, minimum: "8.12.2", expected: true},
		{name: "empty minimum", major: 1, minor: 0, minimum: "", expected: true},
		{name: "malformed minimum", major: 1, minor: 0, minimum: "eight", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := versionAtLeast(tt.major, tt.minor, tt.minimum); got != tt.expected {
				t.Errorf("versionAtLeast(%d, %d, %q) = %v, want %v", tt.major, tt.minor, tt.minimum, got, tt.expected)
			}
		})
	}
}

func TestVipsUnknownCodec(t *testing.T) {
	v := NewVips(DefaultSettings())
	if v.Available(Codec("jxl")) {
		t.Error("vips should not report an unknown codec as available")
	}
}

func TestVipsTranscodeWebP(t *testing.T) {
	InitVips()
	if !IsVipsAvailable() {
		t.Skip("libvips not available in test environment")
	}

	v := NewVips(DefaultSettings())
	if !v.Available(CodecWebP) {
		t.Skip("libvips built without WebP support")
	}

	dir := t.TempDir()
	src := writeTestJPEG(t, dir, 800, 600)
	dst := filepath.Join(dir, "out.webp")

	ok, err := v.Transcode(context.Background(), Request{
		Source: src, Dest: dst, Width: 400, Codec: CodecWebP, MimeType: "image/jpeg",
	})
	if err != nil || !ok {
		t.Fatalf("Transcode() = %v, %v; want true, nil", ok, err)
	}

	out, err := imaging.Open(dst)
	if err != nil {
		t.Fatalf("failed to decode output: %v", err)
	}
	if b := out.Bounds(); b.Dx() != 400 || b.Dy() != 300 {
		t.Errorf("output size = %dx%d, want 400x300", b.Dx(), b.Dy())
	}
}

func TestVipsTranscodeAppliesOrientation(t *testing.T) {
	InitVips()
	if !IsVipsAvailable() {
		t.Skip("libvips not available in test environment")
	}

	v := NewVips(DefaultSettings())
	if !v.Available(CodecWebP) {
		t.Skip("libvips built without WebP support")
	}

	dir := t.TempDir()
	src := writeRotatedJPEG(t, dir, 80, 60)
	dst := filepath.Join(dir, "out.webp")

	ok, err := v.Transcode(context.Background(), Request{
		Source: src, Dest: dst, Codec: CodecWebP, MimeType: "image/jpeg",
	})
	if err != nil || !ok {
		t.Fatalf("Transcode() = %v, %v; want true, nil", ok, err)
	}

	out, err := imaging.Open(dst)
	if err != nil {
		t.Fatalf("failed to decode output: %v", err)
	}
	if b := out.Bounds(); b.Dx() != 60 || b.Dy() != 80 {
		t.Errorf("output size = %dx%d, want 60x80", b.Dx(), b.Dy())
	}
}
