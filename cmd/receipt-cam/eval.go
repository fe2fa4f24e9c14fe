package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/receipt-cam/internal/eval"
	"github.com/zombor/receipt-cam/internal/scanning"
)

func newEvalCommand(root *rootConfig) *ff.Command {
	fs := ff.NewFlagSet("eval").SetParent(root.flags)
	var (
		dir         = fs.StringLong("dir", "evals/images", "Directory of receipt images to evaluate")
		vendors     = fs.StringLong("vendors", strings.Join(scanning.Vendors, ","), "Comma separated vendors to evaluate")
		out         = fs.StringLong("out", "evals/results", "Directory for the results CSV and summary")
		concurrency = fs.IntLong("concurrency", 4, "Analyses run at once")
	)

	return &ff.Command{
		Name:      "eval",
		Usage:     "receipt-cam eval [FLAGS]",
		ShortHelp: "run every image against every vendor and report the results",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			images, err := eval.Images(*dir)
			if err != nil {
				return err
			}
			if len(images) == 0 {
				return fmt.Errorf("no images found in %s", *dir)
			}

			store, err := root.loadCorrections()
			if err != nil {
				return err
			}

			factory := func(vendor string) (eval.Analyzer, error) {
				svc, err := scanning.New(root.scanningConfig(vendor), store)
				if err != nil {
					return nil, err
				}
				return svc, nil
			}

			names := splitList(*vendors)
			slog.Info("Running evaluations", "images", len(images), "vendors", names)
			runner := eval.NewRunner(factory,
				eval.WithConcurrency(*concurrency),
				eval.WithTimeout(*root.timeout),
			)
			results, err := runner.Run(ctx, images, names)
			if err != nil {
				return err
			}

			csvPath, summaryPath, err := eval.Save(*out, results, time.Now())
			if err != nil {
				return err
			}
			slog.Info("Saved evaluation results", "csv", csvPath, "summary", summaryPath)
			return eval.WriteSummary(os.Stdout, results)
		},
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
