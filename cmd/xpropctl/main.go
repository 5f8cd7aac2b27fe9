package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jacoelho/xprop"
	"github.com/jacoelho/xprop/internal/config"
	"github.com/jacoelho/xprop/pkg/propstore"
)

func main() {
	os.Exit(run())
}

func run() int {
	return runWithArgs(os.Args[1:], os.Stdout, os.Stderr)
}

// usageError marks command line mistakes, reported with exit status 2.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

type globalFlags struct {
	configPath string
	schemaKey  string
	logLevel   string
}

func runWithArgs(args []string, stdout, stderr io.Writer) int {
	root := rootCmd(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return 0
	}
	_ = writef(stderr, "error: %v\n", err)
	var usage usageError
	if errors.As(err, &usage) {
		_ = root.Usage()
		return 2
	}
	return 1
}

func rootCmd(stdout, stderr io.Writer) *cobra.Command {
	var flags globalFlags
	cmd := &cobra.Command{
		Use:           "xpropctl",
		Short:         "Extract and demote message properties while streaming XML documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "pipeline configuration file (YAML)")
	cmd.PersistentFlags().StringVarP(&flags.schemaKey, "schema", "s", "", "document type key declared in the configuration")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(runCmd(&flags, stdout, stderr), mergeCmd(&flags, stdout, stderr))
	return cmd
}

func runCmd(flags *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var (
		dumpMetrics    bool
		properties     []string
		cpuProfilePath string
		memProfilePath string
	)
	cmd := &cobra.Command{
		Use:   "run <document.xml>",
		Short: "Stream a document through the effective rule set",
		Long: `Streams the document through the rule set obtained by merging the schema
annotation of the selected document type with the pipeline rule set.
The rewritten document is written to stdout and the resulting properties
to stderr.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if cpuProfilePath != "" {
				stop, err := startCPUProfile(cpuProfilePath)
				if err != nil {
					return err
				}
				defer func() { err = errors.Join(err, stop()) }()
			}
			if memProfilePath != "" {
				defer func() { err = errors.Join(err, writeMemProfile(memProfilePath)) }()
			}

			var reg *prometheus.Registry
			opts := xprop.NewOptions().WithLogger(newLogger(flags.logLevel, stderr))
			if dumpMetrics {
				reg = prometheus.NewRegistry()
				opts = opts.WithMetrics(reg)
			}
			o, desc, err := setup(flags, opts)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open document: %w", err)
			}
			defer f.Close()

			store := propstore.NewMemory()
			for _, p := range properties {
				name, value, err := parseProperty(p)
				if err != nil {
					return err
				}
				store.Set(name, value)
			}
			r, err := o.Process(desc, f, store)
			if err != nil {
				return err
			}
			if _, err := io.Copy(stdout, r); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if err := writeStore(stderr, store); err != nil {
				return err
			}
			if reg != nil {
				return writeMetrics(stderr, reg)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&properties, "set", nil, "seed the store with {namespace}name=value (repeatable)")
	cmd.Flags().BoolVar(&dumpMetrics, "metrics", false, "print counters after the run")
	cmd.Flags().StringVar(&cpuProfilePath, "cpuprofile", "", "write CPU profile to file")
	cmd.Flags().StringVar(&memProfilePath, "memprofile", "", "write memory profile to file")
	return cmd
}

func mergeCmd(flags *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Print the effective rule set of a document type",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, desc, err := setup(flags, xprop.NewOptions().WithLogger(newLogger(flags.logLevel, stderr)))
			if err != nil {
				return err
			}
			effective, err := o.Effective(desc)
			if err != nil {
				return err
			}
			text := xprop.FormatRuleSet(effective)
			if text == "" {
				return nil
			}
			return writeln(stdout, text)
		},
	}
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err: err}
		}
		return nil
	}
}

// setup loads the configuration and resolves the selected document type, which
// is nil when no --schema is given.
func setup(flags *globalFlags, opts xprop.Options) (*xprop.Orchestrator, xprop.DocumentType, error) {
	if flags.configPath == "" {
		return nil, nil, usageError{err: errors.New("--config is required")}
	}
	abs, err := filepath.Abs(flags.configPath)
	if err != nil {
		return nil, nil, err
	}
	pipeline, err := config.Load(os.DirFS(filepath.Dir(abs)), filepath.Base(abs))
	if err != nil {
		return nil, nil, err
	}

	var desc xprop.DocumentType
	if flags.schemaKey != "" {
		d, ok := pipeline.DocumentType(flags.schemaKey)
		if !ok {
			return nil, nil, usageError{err: fmt.Errorf("unknown document type %q (declared: %s)",
				flags.schemaKey, strings.Join(pipeline.Keys(), ", "))}
		}
		desc = d
	}

	locator, err := xprop.NewLocator(opts)
	if err != nil {
		return nil, nil, err
	}
	o, err := xprop.NewOrchestrator(locator, pipeline.RuleSet, opts)
	if err != nil {
		return nil, nil, err
	}
	return o, desc, nil
}

// parseProperty splits "{namespace}local=value". The namespace part is optional.
func parseProperty(s string) (xprop.QName, string, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return xprop.QName{}, "", usageError{err: fmt.Errorf("--set %q: expected name=value", s)}
	}
	ns, local := "", name
	if rest, found := strings.CutPrefix(name, "{"); found {
		var closed bool
		ns, local, closed = strings.Cut(rest, "}")
		if !closed {
			return xprop.QName{}, "", usageError{err: fmt.Errorf("--set %q: unterminated namespace", s)}
		}
	}
	if local == "" {
		return xprop.QName{}, "", usageError{err: fmt.Errorf("--set %q: missing local name", s)}
	}
	return xprop.NewQName(ns, local), value, nil
}

func newLogger(level string, w io.Writer) *slog.Logger {
	l := slog.LevelWarn
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "error":
		l = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

func writeStore(w io.Writer, store *propstore.Memory) error {
	for _, e := range store.Snapshot() {
		suffix := ""
		if e.Indexed {
			suffix = " (promoted)"
		}
		if err := writef(w, "%s = %s%s\n", e.Name, e.Value, suffix); err != nil {
			return err
		}
	}
	return nil
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := f.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			if err := writef(w, "%s %g\n", name, m.GetCounter().GetValue()); err != nil {
				return err
			}
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}

func startCPUProfile(path string) (func() error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create cpu profile %s: %w", path, err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		if closeErr := f.Close(); closeErr != nil {
			return nil, fmt.Errorf("start cpu profile %s: %w (close failed: %w)", path, err, closeErr)
		}
		return nil, fmt.Errorf("start cpu profile %s: %w", path, err)
	}
	return func() error {
		pprof.StopCPUProfile()
		if err := f.Close(); err != nil {
			return fmt.Errorf("close cpu profile %s: %w", path, err)
		}
		return nil
	}, nil
}

func writeMemProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create mem profile %s: %w", path, err)
	}
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		if closeErr := f.Close(); closeErr != nil {
			return fmt.Errorf("write mem profile %s: %w (close failed: %w)", path, err, closeErr)
		}
		return fmt.Errorf("write mem profile %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close mem profile %s: %w", path, err)
	}
	return nil
}
