package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/spp/internal/debug"
	"github.com/standardbeagle/spp/internal/resolver"
	"github.com/standardbeagle/spp/internal/watch"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Aliases:   []string{"w"},
		Usage:     "Preprocess files and rebuild whenever a source or include changes",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Report each rebuild as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			inputs := c.Args().Slice()
			if len(inputs) == 0 {
				return fmt.Errorf("no input files")
			}
			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			res := resolver.New(cfg.Preprocess.IncludeDirs, cfg.Preprocess.SystemDirs)

			rebuild := func(reason string) {
				start := time.Now()
				units := make([]*unitResult, 0, len(inputs))
				for _, input := range inputs {
					unit, err := buildUnit(cfg, res, input, "", false)
					if err != nil {
						fmt.Fprintf(os.Stderr, "Error: %v\n", err)
						continue
					}
					units = append(units, unit)
				}
				reportUnits(cfg, units, c.Bool("json"), c.Bool("verbose"))
				if !c.Bool("json") {
					fmt.Fprintf(os.Stderr, "[%s] rebuilt %d files in %v\n",
						reason, len(units), time.Since(start).Round(time.Millisecond))
				}
			}

			var w *watch.Watcher
			w, err = watch.New(cfg, func(paths []string) {
				for _, path := range paths {
					debug.Logf("watch: changed %s", path)
					res.Invalidate(path)
				}
				rebuild("change")
				// includes resolved during the rebuild may be new; watch them too
				watchTracked(w, res)
			})
			if err != nil {
				return err
			}
			defer w.Stop()

			rebuild("initial")
			for _, input := range inputs {
				if err := w.Add(input); err != nil {
					return err
				}
			}
			watchTracked(w, res)
			w.Start()

			fmt.Fprintf(os.Stderr, "watching %d files under %s (ctrl-c to stop)\n",
				len(inputs), cfg.Project.Root)

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop
			return nil
		},
	}
}

// watchTracked adds every include the resolver has loaded so far to the
// watch set.
func watchTracked(w *watch.Watcher, res *resolver.Filesystem) {
	for _, path := range res.TrackedFiles() {
		if err := w.Add(path); err != nil {
			debug.Logf("watch: cannot watch %s: %v", path, err)
		}
	}
}
