package hooks

import (
	"context"
	"path"
	"strconv"
	"strings"

	"webp-renditions/internal/encoder"
	"webp-renditions/internal/filerepo"
	"webp-renditions/internal/jobs"
	"webp-renditions/internal/logging"

	"go.uber.org/multierr"
)

// responsiveDensities are the extra pixel densities added to thumbnail
// srcsets.
var responsiveDensities = []float64{1.5, 2}

// Source is one alternate source of a picture element.
type Source struct {
	Type   string `json:"type"`
	Srcset string `json:"srcset"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// PictureSources returns the rendition sources of title rendered at width,
// or of the original when width is 0, for every enabled format whose
// rendition exists. Missing renditions are queued and left out. With
// responsive images on, thumbnail srcsets also list the 1.5x and 2x widths
// and, with responsive jobs on, those are queued too.
func (h *Hooks) PictureSources(ctx context.Context, title string, width int) ([]Source, error) {
	file, err := filerepo.Lookup(ctx, h.repo, title, h.hashLevels)
	if err != nil {
		return nil, err
	}
	if file.HashPath == "" {
		return nil, nil
	}

	cfg := h.config()
	outWidth, outHeight := file.Width, file.Height
	if width > 0 {
		outWidth, outHeight = width, encoder.ResizeHeight(width, file.Width, file.Height)
	}

	var (
		sources []Source
		errs    error
	)
	prober := h.factory.Prober()
	for _, f := range h.formats() {
		if !prober.CanTransform(f, *file) {
			continue
		}

		var zone, rel, base string
		if width > 0 {
			zone, rel, base = filerepo.ZoneThumb, f.ThumbPath(file.Name, file.HashPath, width), h.urls.Thumb
		} else {
			zone, rel, base = filerepo.ZonePublic, f.FullPath(file.Rel()), h.urls.Public
		}
		url := joinURL(base, rel)

		srcset := []string{url}
		if width > 0 && cfg.ResponsiveImages {
			for _, density := range responsiveDensities {
				w := int(float64(width) * density)
				srcset = append(srcset, joinURL(base, f.ThumbPath(file.Name, file.HashPath, w))+" "+formatDensity(density))

				if cfg.ResponsiveJobs {
					_, err := h.push(ctx, jobs.TransformImageParams{Transformer: f.Key, Title: file.Title, Width: w})
					errs = multierr.Append(errs, err)
				}
			}
		}

		exists, err := h.repo.Exists(ctx, zone, rel)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !exists {
			logging.Debug("[%s] %s/%s missing, queueing", f.Key, zone, rel)
			_, err := h.push(ctx, jobs.TransformImageParams{Transformer: f.Key, Title: file.Title, Width: width})
			errs = multierr.Append(errs, err)
			continue
		}

		sources = append(sources, Source{
			Type:   f.MimeType,
			Srcset: strings.Join(srcset, ", "),
			Width:  outWidth,
			Height: outHeight,
		})
	}

	return sources, record("sources", errs)
}

func joinURL(base, rel string) string {
	if base == "" {
		return "/" + rel
	}
	return strings.TrimRight(base, "/") + "/" + path.Clean(rel)
}

func formatDensity(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64) + "x"
}
