package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"webp-renditions/internal/batch"
	"webp-renditions/internal/transform"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newRemoveCmd(configPath *string) *cobra.Command {
	var (
		opts    batch.RemoveOptions
		formats []string
		yes     bool
	)

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Delete renditions",
		Long: `Delete full-size renditions (--images) and/or thumbnails (--thumbs).
Without --force the files are only listed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !opts.Thumbs && !opts.Images {
				return fmt.Errorf("nothing to remove, pass --thumbs and/or --images")
			}

			ctx := cmd.Context()
			e, err := openEnv(ctx, *configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			selected, err := selectFormats(e.factory, formats)
			if err != nil {
				return err
			}

			if opts.Force && !yes && isTerminal(os.Stdin) {
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
					fmt.Sprintf("Delete renditions for %s?", formatKeys(selected)))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			n, err := batch.Remove(ctx, e.repo, selected, opts, cmd.OutOrStdout())
			if opts.Force {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d files\n", n)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%d files would be deleted, pass --force to delete them\n", n)
			}
			return err
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.Thumbs, "thumbs", false, "remove thumbnails")
	f.BoolVar(&opts.Images, "images", false, "remove full-size renditions")
	f.BoolVar(&opts.Force, "force", false, "delete instead of listing")
	f.BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	f.StringSliceVar(&formats, "format", nil, "formats to remove (default all)")
	return cmd
}

func selectFormats(factory *transform.Factory, keys []string) ([]*transform.Format, error) {
	if len(keys) == 0 {
		keys = factory.Keys()
	}
	selected := make([]*transform.Format, 0, len(keys))
	for _, key := range keys {
		f, ok := factory.Format(strings.TrimSpace(key))
		if !ok {
			return nil, fmt.Errorf("%w: %s", transform.ErrInvalidFormat, key)
		}
		selected = append(selected, f)
	}
	return selected, nil
}

func formatKeys(formats []*transform.Format) string {
	keys := make([]string, len(formats))
	for i, f := range formats {
		keys[i] = f.Key
	}
	return strings.Join(keys, ", ")
}

var isTerminal = func(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// confirm asks a yes/no question and reads the answer from in.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("error reading answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
