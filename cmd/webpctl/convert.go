package main

import (
	"fmt"

	"webp-renditions/internal/batch"
	"webp-renditions/internal/jobqueue"
	"webp-renditions/internal/jobs"

	"github.com/spf13/cobra"
)

func newConvertCmd(configPath *string) *cobra.Command {
	var (
		opts    batch.ConvertOptions
		queue   bool
		noQueue bool
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Create renditions for existing uploads",
		Long: `Create full-size renditions and thumbnails for uploads already in the
repository. Titles come from --titles or from listing the public zone.

Jobs run in this process unless the config sets transform.convert_in_queue
or --queue is given, in which case they are pushed to the job queue.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if queue && noQueue {
				return fmt.Errorf("--queue and --no-queue are mutually exclusive")
			}

			ctx := cmd.Context()
			e, err := openEnv(ctx, *configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			opts.InQueue = e.config.Transform.ConvertInQueue
			if cmd.Flags().Changed("queue") {
				opts.InQueue = queue
			}
			if noQueue {
				opts.InQueue = false
			}

			var enqueuer batch.Enqueuer
			if opts.InQueue {
				q, err := jobqueue.Open(ctx, e.config.Queue.Path)
				if err != nil {
					return fmt.Errorf("failed to open job queue: %w", err)
				}
				defer q.Close()
				enqueuer = q
			}

			exec := jobs.NewTransformImageHandler(e.factory, e.repo, e.config.Repository.HashLevels)
			conv := batch.NewConverter(e.factory, e.repo, e.config.Repository.HashLevels,
				enqueuer, exec, cmd.OutOrStdout(), cmd.ErrOrStderr())

			sum, err := conv.Convert(ctx, opts)
			if err != nil {
				return err
			}
			if opts.InQueue {
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %d jobs\n", sum.Queued)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Finished: %d done, %d failed\n", sum.Done, sum.Failed)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&opts.Titles, "titles", nil, "comma separated titles to convert")
	f.StringVar(&opts.TitlePrefix, "title-prefix", "", "only convert titles starting with this prefix")
	f.StringVar(&opts.FileType, "file-type", "", "only convert titles with this extension")
	f.BoolVar(&opts.ThumbsOnly, "thumbs-only", false, "only create thumbnails")
	f.BoolVar(&opts.NoThumbs, "no-thumbs", false, "do not create thumbnails")
	f.IntSliceVar(&opts.ThumbSizes, "thumb-sizes", nil, "comma separated thumbnail widths (default from config)")
	f.BoolVar(&opts.Overwrite, "overwrite", false, "replace existing renditions")
	f.BoolVar(&queue, "queue", false, "push jobs to the job queue")
	f.BoolVar(&noQueue, "no-queue", false, "run jobs in this process")
	cmd.MarkFlagsMutuallyExclusive("thumbs-only", "no-thumbs")
	return cmd
}
