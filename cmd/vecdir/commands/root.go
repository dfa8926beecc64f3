// Package commands implements the vecdir command line interface.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecdir"
	"github.com/hupe1980/vecdir/codec"
	"github.com/hupe1980/vecdir/distance"
)

// app carries the global flags shared by all subcommands.
type app struct {
	configPath string
	logLevel   string
	jsonOutput bool

	cfg   Config
	codec codec.Codec
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "vecdir",
		Short: "Manage file-backed vector collections",
		Long: `vecdir manages persistent vector collections stored in plain directories.

Inserts and deletes are durable immediately; they reach search results
after the next build.

Examples:
  vecdir create ./data/docs --dims 384
  vecdir import ./data/docs -f embeddings.jsonl --build
  vecdir search ./data/docs --vector 0.1,0.2,... -k 5`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log_level from the config")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		a.createCommand(),
		a.insertCommand(),
		a.importCommand(),
		a.deleteCommand(),
		a.buildCommand(),
		a.searchCommand(),
		a.statsCommand(),
	)
	return root
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

func (a *app) loadConfig() error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	cd, err := codec.ByName(cfg.Codec)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.codec = cd
	return nil
}

// withRegistry opens a registry for the duration of fn.
func (a *app) withRegistry(ctx context.Context, fn func(reg *vecdir.Registry) error) (err error) {
	opts, err := a.cfg.Options(ctx)
	if err != nil {
		return err
	}
	reg := vecdir.NewRegistry(opts...)
	defer func() {
		if cerr := reg.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(reg)
}

func (a *app) printJSON(w io.Writer, v any) error {
	data, err := a.codec.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// parseVector parses comma separated floats.
func parseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("vector must not be empty")
	}
	parts := strings.Split(s, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("vector component %d: %w", i, err)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}

func normalize(vec []float32) ([]float32, error) {
	out, ok := distance.NormalizeL2Copy(vec)
	if !ok {
		return nil, fmt.Errorf("cannot normalize zero vector")
	}
	return out, nil
}

func openInput(name string) (io.ReadCloser, error) {
	if name == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return f, nil
}
