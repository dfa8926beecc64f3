package commands

import (
	"bufio"
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecdir"
)

// maxLineSize bounds a single JSONL record.
const maxLineSize = 64 << 20

func (a *app) insertCommand() *cobra.Command {
	var norm bool
	cmd := &cobra.Command{
		Use:   "insert <path> <id> <v1,v2,...>",
		Short: "Upsert a vector",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			vec, err := parseVector(args[2])
			if err != nil {
				return err
			}
			if norm {
				if vec, err = normalize(vec); err != nil {
					return err
				}
			}
			return a.withRegistry(cmd.Context(), func(reg *vecdir.Registry) error {
				if err := reg.InsertVector(cmd.Context(), args[0], args[1], vec); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "inserted %s\n", args[1])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&norm, "normalize", false, "L2-normalize the vector before inserting")
	return cmd
}

// importRecord is one line of an import file.
type importRecord struct {
	ID     string    `json:"id"`
	Vector []float32 `json:"vector"`
}

func (a *app) importCommand() *cobra.Command {
	var (
		file  string
		norm  bool
		build bool
	)
	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Upsert vectors from a JSONL file",
		Long: `Upsert vectors from a file with one JSON object per line:

  {"id": "doc-1", "vector": [0.1, 0.2, 0.3]}

Records are inserted in file order. Use -f - to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("input file is required, use -f flag")
			}
			in, err := openInput(file)
			if err != nil {
				return err
			}
			defer in.Close()

			return a.withRegistry(cmd.Context(), func(reg *vecdir.Registry) error {
				sc := bufio.NewScanner(in)
				sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

				var n, line int
				for sc.Scan() {
					line++
					data := bytes.TrimSpace(sc.Bytes())
					if len(data) == 0 {
						continue
					}
					var rec importRecord
					if err := a.codec.Unmarshal(data, &rec); err != nil {
						return fmt.Errorf("line %d: %w", line, err)
					}
					vec := rec.Vector
					if norm {
						if vec, err = normalize(vec); err != nil {
							return fmt.Errorf("line %d: %w", line, err)
						}
					}
					if err := reg.InsertVector(cmd.Context(), args[0], rec.ID, vec); err != nil {
						return fmt.Errorf("line %d: %w", line, err)
					}
					n++
				}
				if err := sc.Err(); err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d vectors\n", n)

				if build {
					if err := reg.BuildIndex(cmd.Context(), args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "built %s\n", args[0])
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSONL input file, - for stdin")
	cmd.Flags().BoolVar(&norm, "normalize", false, "L2-normalize vectors before inserting")
	cmd.Flags().BoolVar(&build, "build", false, "build the index after importing")
	return cmd
}

func (a *app) searchCommand() *cobra.Command {
	var (
		vector string
		k      int
		norm   bool
	)
	cmd := &cobra.Command{
		Use:   "search <path>",
		Short: "Search the last built index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parseVector(vector)
			if err != nil {
				return err
			}
			if norm {
				if query, err = normalize(query); err != nil {
					return err
				}
			}
			return a.withRegistry(cmd.Context(), func(reg *vecdir.Registry) error {
				results, err := reg.Search(cmd.Context(), args[0], query, k)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					type hit struct {
						ID    string  `json:"id"`
						Score float32 `json:"score"`
					}
					out := make([]hit, len(results))
					for i, r := range results {
						out[i] = hit{ID: r.ID, Score: r.Score}
					}
					return a.printJSON(cmd.OutOrStdout(), out)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "RANK\tID\tSCORE")
				for i, r := range results {
					fmt.Fprintf(w, "%d\t%s\t%.4f\n", i+1, r.ID, r.Score)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVarP(&vector, "vector", "q", "", "comma separated query vector")
	cmd.Flags().IntVarP(&k, "k", "k", 10, "number of results")
	cmd.Flags().BoolVar(&norm, "normalize", false, "L2-normalize the query")
	return cmd
}
