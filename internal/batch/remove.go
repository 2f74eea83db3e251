package batch

import (
	"context"
	"fmt"
	"io"
	"path"

	"webp-renditions/internal/filerepo"
	"webp-renditions/internal/transform"

	"go.uber.org/multierr"
)

// RemoveOptions select what Remove deletes.
type RemoveOptions struct {
	Thumbs bool
	Images bool
	// Force deletes; without it Remove only reports.
	Force bool
}

// Remove deletes every rendition of formats, printing each path to out.
// It returns how many files were, or in a dry run would be, deleted.
func Remove(ctx context.Context, repo filerepo.Repository, formats []*transform.Format, opts RemoveOptions, out io.Writer) (int, error) {
	var (
		n    int
		errs error
	)
	for _, f := range formats {
		if opts.Thumbs {
			fmt.Fprintln(out, "Removing thumbnails")
			c, err := removeTree(ctx, repo, filerepo.ZoneThumb, f.DirName, opts.Force, out)
			n += c
			errs = multierr.Append(errs, err)
		}
		if opts.Images {
			fmt.Fprintln(out, "Removing images")
			c, err := removeTree(ctx, repo, filerepo.ZonePublic, f.DirName, opts.Force, out)
			n += c
			errs = multierr.Append(errs, err)
		}
	}
	return n, errs
}

func removeTree(ctx context.Context, repo filerepo.Repository, zone, dir string, force bool, out io.Writer) (int, error) {
	files, err := repo.List(ctx, zone, dir)
	if err != nil {
		return 0, err
	}

	var errs error
	for _, rel := range files {
		if !force {
			fmt.Fprintf(out, "[DRY RUN] Deleting %s\n", rel)
			continue
		}
		fmt.Fprintf(out, "Deleting %s\n", rel)
		if err := repo.Delete(ctx, zone, rel); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		parent := path.Dir(rel)
		errs = multierr.Append(errs, repo.CleanDir(ctx, zone, parent))
		errs = multierr.Append(errs, repo.CleanDir(ctx, zone, path.Dir(parent)))
	}

	if force {
		errs = multierr.Append(errs, repo.CleanDir(ctx, zone, dir))
	}
	return len(files), errs
}
