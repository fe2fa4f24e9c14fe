package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/peterbourgon/ff/v4"
	"go.uber.org/multierr"

	"github.com/zombor/receipt-cam/internal/scanning"
)

type analysis struct {
	File    string            `json:"file"`
	Receipt *scanning.Receipt `json:"receipt,omitempty"`
	Error   string            `json:"error,omitempty"`
}

func newAnalyzeCommand(root *rootConfig) *ff.Command {
	fs := ff.NewFlagSet("analyze").SetParent(root.flags)
	return &ff.Command{
		Name:      "analyze",
		Usage:     "receipt-cam analyze [FLAGS] FILE...",
		ShortHelp: "extract receipt fields from image or PDF files",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) (err error) {
			if len(args) == 0 {
				return errors.New("analyze requires at least one file")
			}

			store, err := root.loadCorrections()
			if err != nil {
				return err
			}
			scanner, err := root.newScanner(store)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, scanner.Close()) }()

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")

			failed := 0
			for _, file := range args {
				result := analysis{File: file}
				receipt, err := analyzeFile(ctx, scanner, file)
				if err != nil {
					slog.Error("Failed to analyze file", "file", file, "error", err)
					result.Error = err.Error()
					failed++
				} else {
					result.Receipt = receipt
				}
				if err := enc.Encode(result); err != nil {
					return fmt.Errorf("writing result: %w", err)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}

func analyzeFile(ctx context.Context, scanner *scanning.Service, file string) (*scanning.Receipt, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	jpeg, converted, err := scanning.PrepareImage(data, scanning.ContentTypeFor(filepath.Base(file)))
	if err != nil {
		return nil, err
	}
	if converted {
		slog.Debug("Converted file to JPEG", "file", file, "bytes", len(jpeg))
	}
	return scanner.AnalyzeReceipt(ctx, jpeg)
}
