package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecdir"
)

func (a *app) createCommand() *cobra.Command {
	var (
		dims      int
		metric    string
		indexType string
	)
	cmd := &cobra.Command{
		Use:   "create <path>",
		Short: "Create a collection",
		Long: `Create a collection directory. Creating an existing collection with the
same settings succeeds without changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dims <= 0 {
				return fmt.Errorf("--dims is required")
			}
			return a.withRegistry(cmd.Context(), func(reg *vecdir.Registry) error {
				err := reg.CreateCollection(cmd.Context(), vecdir.Config{
					Path:       args[0],
					Dimensions: dims,
					IndexType:  indexType,
					Metric:     metric,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s (%d dimensions)\n", args[0], dims)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&dims, "dims", "d", 0, "vector dimension")
	cmd.Flags().StringVar(&metric, "metric", vecdir.MetricCosine, "similarity metric")
	cmd.Flags().StringVar(&indexType, "index-type", vecdir.IndexTypeHNSW, "index type")
	return cmd
}

func (a *app) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <path> <id>",
		Short: "Delete a vector",
		Long:  `Tombstone a vector. It disappears from search results after the next build.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRegistry(cmd.Context(), func(reg *vecdir.Registry) error {
				deleted, err := reg.DeleteVector(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return a.printJSON(cmd.OutOrStdout(), map[string]any{"id": args[1], "deleted": deleted})
				}
				if deleted {
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[1])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s not found\n", args[1])
				}
				return nil
			})
		},
	}
}

func (a *app) buildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "build <path>...",
		Short: "Rebuild collection indexes",
		Long: `Rebuild the index of each collection from its live vectors and purge
deleted vectors. Collections are built concurrently up to
max_concurrent_builds.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRegistry(cmd.Context(), func(reg *vecdir.Registry) error {
				g, ctx := errgroup.WithContext(cmd.Context())
				if a.cfg.MaxConcurrentBuilds > 0 {
					g.SetLimit(a.cfg.MaxConcurrentBuilds)
				}
				for _, path := range args {
					g.Go(func() error {
						if err := reg.BuildIndex(ctx, path); err != nil {
							return fmt.Errorf("build %s: %w", path, err)
						}
						return nil
					})
				}
				if err := g.Wait(); err != nil {
					return err
				}
				for _, path := range args {
					st, err := reg.Stats(cmd.Context(), path)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "built %s: %d vectors, %s\n", path, st.Count, formatBytes(st.FileSizeBytes))
				}
				return nil
			})
		},
	}
}

type statsOutput struct {
	Path          string `json:"path"`
	Count         int    `json:"count"`
	Dimensions    int    `json:"dimensions"`
	FileSizeBytes int64  `json:"fileSizeBytes"`
}

func (a *app) statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <path>...",
		Short: "Show collection statistics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRegistry(cmd.Context(), func(reg *vecdir.Registry) error {
				out := make([]statsOutput, 0, len(args))
				for _, path := range args {
					st, err := reg.Stats(cmd.Context(), path)
					if err != nil {
						return err
					}
					out = append(out, statsOutput{Path: path, Count: st.Count, Dimensions: st.Dimensions, FileSizeBytes: st.FileSizeBytes})
				}
				if a.jsonOutput {
					return a.printJSON(cmd.OutOrStdout(), out)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "PATH\tCOUNT\tDIMENSIONS\tINDEX SIZE")
				for _, s := range out {
					fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", s.Path, s.Count, s.Dimensions, formatBytes(s.FileSizeBytes))
				}
				return w.Flush()
			})
		},
	}
}

// formatBytes formats bytes to human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
