package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/spp/internal/config"
	"github.com/standardbeagle/spp/internal/debug"
	"github.com/standardbeagle/spp/internal/flatten"
	"github.com/standardbeagle/spp/internal/pp"
	"github.com/standardbeagle/spp/internal/resolver"
	"github.com/standardbeagle/spp/internal/version"
	"github.com/standardbeagle/spp/pkg/pathutil"
)

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", c.String("config"), err)
	}

	if dirs := c.StringSlice("include-dir"); len(dirs) > 0 {
		cfg.Preprocess.IncludeDirs = append(cfg.Preprocess.IncludeDirs, dirs...)
	}
	if dirs := c.StringSlice("system-dir"); len(dirs) > 0 {
		cfg.Preprocess.SystemDirs = append(cfg.Preprocess.SystemDirs, dirs...)
	}
	for _, def := range c.StringSlice("define") {
		name, value, found := strings.Cut(def, "=")
		if !found {
			value = "1"
		}
		cfg.Defines[name] = value
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// predefines flattens the config define map into the start-time predefine
// list, sorted for a deterministic duplicate report.
func predefines(cfg *config.Config) []pp.Define {
	names := make([]string, 0, len(cfg.Defines))
	for name := range cfg.Defines {
		names = append(names, name)
	}
	sort.Strings(names)
	defs := make([]pp.Define, 0, len(names))
	for _, name := range names {
		defs = append(defs, pp.Define{Name: name, Value: cfg.Defines[name]})
	}
	return defs
}

// unitResult is the outcome of preprocessing one translation unit.
type unitResult struct {
	Input    string          `json:"input"`
	Output   string          `json:"output,omitempty"`
	Bytes    int             `json:"bytes"`
	Errors   []flatten.Error `json:"errors,omitempty"`
	Duration time.Duration   `json:"duration_ns"`
}

// buildUnit preprocesses one input file and writes the flattened output.
// toStdout suppresses the output file and streams to standard output instead.
func buildUnit(cfg *config.Config, res *resolver.Filesystem, input, output string, toStdout bool) (*unitResult, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, err
	}
	if info.Size() > cfg.Preprocess.MaxFileSize {
		return nil, fmt.Errorf("%s: %d bytes exceeds max_file_size %d",
			input, info.Size(), cfg.Preprocess.MaxFileSize)
	}
	source, err := os.ReadFile(input)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := flatten.Preprocess(pp.Options{
		Filename:   input,
		Source:     source,
		Resolver:   res,
		Predefines: predefines(cfg),
	})
	defer result.Free()
	if result.OutOfMemory() {
		return nil, fmt.Errorf("%s: out of memory during preprocessing", input)
	}

	unit := &unitResult{
		Input:    input,
		Bytes:    len(result.Output),
		Errors:   append([]flatten.Error(nil), result.Errors...),
		Duration: time.Since(start),
	}

	if toStdout {
		if _, err := os.Stdout.Write(result.Output); err != nil {
			return nil, err
		}
		return unit, nil
	}

	if output == "" {
		output = defaultOutputPath(cfg, input)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(output, result.Output, 0644); err != nil {
		return nil, err
	}
	unit.Output = output
	return unit, nil
}

// defaultOutputPath places the flattened output next to the input (or in
// output_dir when configured) with a .pp suffix: fx/main.fx -> fx/main.fx.pp
func defaultOutputPath(cfg *config.Config, input string) string {
	name := filepath.Base(input) + ".pp"
	if cfg.Preprocess.OutputDir != "" {
		return filepath.Join(cfg.Preprocess.OutputDir, name)
	}
	return filepath.Join(filepath.Dir(input), name)
}

// reportUnits prints per-unit results and returns the total error count.
func reportUnits(cfg *config.Config, units []*unitResult, jsonOut, verbose bool) int {
	errorCount := 0
	for _, unit := range units {
		errorCount += len(unit.Errors)
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(units)
		return errorCount
	}

	for _, unit := range units {
		for _, e := range unit.Errors {
			where := pathutil.ToRelative(e.Filename, cfg.Project.Root)
			if where == "" {
				where = unit.Input
			}
			fmt.Fprintf(os.Stderr, "%s:%d: %s\n", where, e.Line, e.Message)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "%s: %d bytes in %v (%d errors)\n",
				pathutil.ToRelative(unit.Input, cfg.Project.Root),
				unit.Bytes, unit.Duration.Round(time.Microsecond), len(unit.Errors))
		}
	}
	return errorCount
}

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:      "build",
		Aliases:   []string{"b"},
		Usage:     "Preprocess shader source files",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output path (single input only)",
			},
			&cli.BoolFlag{
				Name:  "stdout",
				Usage: "Write preprocessed output to stdout instead of files",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Report results as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			inputs := c.Args().Slice()
			if len(inputs) == 0 {
				return fmt.Errorf("no input files")
			}
			if c.String("output") != "" && len(inputs) > 1 {
				return fmt.Errorf("-o is only valid with a single input file")
			}
			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			res := resolver.New(cfg.Preprocess.IncludeDirs, cfg.Preprocess.SystemDirs)

			units := make([]*unitResult, len(inputs))
			var g errgroup.Group
			g.SetLimit(runtime.NumCPU())
			for i, input := range inputs {
				g.Go(func() error {
					debug.Logf("build: %s", input)
					unit, err := buildUnit(cfg, res, input, c.String("output"), c.Bool("stdout"))
					if err != nil {
						return err
					}
					units[i] = unit
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if n := reportUnits(cfg, units, c.Bool("json"), c.Bool("verbose")); n > 0 {
				return cli.Exit(fmt.Sprintf("%d preprocessing errors", n), 1)
			}
			return nil
		},
	}
}

func main() {
	debug.SetDebugOutput(os.Stderr)
	app := &cli.App{
		Name:                   "spp",
		Usage:                  "Streaming preprocessor for HLSL-style shader sources",
		Version:                version.Info(),
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   config.DefaultConfigFile,
			},
			&cli.StringSliceFlag{
				Name:    "include-dir",
				Aliases: []string{"I"},
				Usage:   "Add a search directory for #include \"...\" and <...>",
			},
			&cli.StringSliceFlag{
				Name:  "system-dir",
				Usage: "Add a search directory for #include \"...\" and <...>, searched after -I",
			},
			&cli.StringSliceFlag{
				Name:    "define",
				Aliases: []string{"D"},
				Usage:   "Predefine NAME or NAME=VALUE before preprocessing",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Show per-unit statistics",
			},
		},
		Commands: []*cli.Command{
			buildCommand(),
			watchCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
