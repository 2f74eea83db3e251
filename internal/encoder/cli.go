package encoder

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"webp-renditions/internal/logging"
)

// commandRunner runs an external command and returns its combined error.
type commandRunner func(ctx context.Context, name string, args ...string) error

// CLI encodes through the dedicated command line encoders, cwebp for WebP
// and avifenc for AVIF.
type CLI struct {
	settings Settings
	lookPath func(file string) (string, error)
	run      commandRunner
}

// NewCLI creates the external encoder backend.
func NewCLI(s Settings) *CLI {
	return &CLI{
		settings: s,
		lookPath: exec.LookPath,
		run:      runCommand,
	}
}

// Name implements Backend.
func (c *CLI) Name() string { return "cli" }

func (c *CLI) binary(codec Codec) string {
	switch codec {
	case CodecWebP:
		return c.settings.CWebPPath
	case CodecAVIF:
		return c.settings.AvifencPath
	default:
		return ""
	}
}

// Available reports whether the encoder binary for codec is configured and
// executable.
func (c *CLI) Available(codec Codec) bool {
	bin := c.binary(codec)
	if bin == "" {
		return false
	}
	_, err := c.lookPath(bin)
	return err == nil
}

// Transcode implements Backend.
func (c *CLI) Transcode(ctx context.Context, req Request) (bool, error) {
	if !c.Available(req.Codec) {
		return false, nil
	}

	var args []string
	switch req.Codec {
	case CodecWebP:
		args = c.webpArgs(req)
	case CodecAVIF:
		if req.Resizes() {
			// avifenc cannot scale; leave resized output to the next backend
			logging.Debug("avifenc cannot resize, skipping %s", req.Source)
			return false, nil
		}
		args = c.avifArgs(req)
	default:
		return false, nil
	}

	bin, _ := c.lookPath(c.binary(req.Codec))
	logging.Debug("Running %s %s", bin, strings.Join(args, " "))

	if err := c.run(ctx, bin, args...); err != nil {
		return false, fmt.Errorf("%s failed for %s: %w", c.binary(req.Codec), req.Source, err)
	}
	return true, nil
}

func (c *CLI) webpArgs(req Request) []string {
	w := c.settings.WebP
	args := []string{"-quiet"}
	if req.Resizes() {
		args = append(args, "-resize", strconv.Itoa(req.Width), "0")
	}
	args = append(args,
		"-q", strconv.Itoa(w.Quality),
		"-alpha_q", strconv.Itoa(w.FilterStrength),
	)
	if w.AutoFilter {
		args = append(args, "-af")
	}
	return append(args, "-metadata", "icc", req.Source, "-o", req.Dest)
}

// avifQuantizer maps a 0-100 quality onto avifenc's 0 (best) to 63 (worst)
// quantizer range.
func avifQuantizer(quality int) int {
	if quality < 0 {
		quality = 0
	}
	if quality > 100 {
		quality = 100
	}
	return 63 - quality*63/100
}

func (c *CLI) avifArgs(req Request) []string {
	a := c.settings.AVIF
	return []string{
		"--min", "0",
		"--max", strconv.Itoa(avifQuantizer(a.Quality)),
		"--speed", strconv.Itoa(a.Speed),
		"--jobs", "all",
		req.Source, req.Dest,
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
