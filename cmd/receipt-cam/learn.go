package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/receipt-cam/internal/corrections"
	"github.com/zombor/receipt-cam/internal/scanning"
)

func newLearnCommand(root *rootConfig) *ff.Command {
	fs := ff.NewFlagSet("learn").SetParent(root.flags)
	var (
		field         = fs.StringLong("field", "", "Receipt field the rule applies to: "+strings.Join(scanning.Fields, ", "))
		original      = fs.StringLong("original", "", "Value the model extracted")
		corrected     = fs.StringLong("corrected", "", "Value it should have extracted")
		vendorContext = fs.StringLong("vendor-context", "", "Vendor the rule applies to (non-vendor fields)")
	)

	return &ff.Command{
		Name:      "learn",
		Usage:     "receipt-cam learn --field FIELD --original VALUE --corrected VALUE [--vendor-context VENDOR]",
		ShortHelp: "add a correction rule",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if !scanning.IsField(*field) {
				return fmt.Errorf("unknown field %q", *field)
			}
			if *original == "" || *corrected == "" {
				return errors.New("both --original and --corrected are required")
			}

			store, err := root.loadCorrections()
			if err != nil {
				return err
			}
			rule := corrections.Rule{
				Field:         *field,
				Original:      *original,
				Corrected:     *corrected,
				VendorContext: *vendorContext,
			}.Format()
			if err := store.Add(rule); err != nil {
				return err
			}
			fmt.Println(rule)
			return nil
		},
	}
}

func newCorrectionsCommand(root *rootConfig) *ff.Command {
	fs := ff.NewFlagSet("corrections").SetParent(root.flags)
	return &ff.Command{
		Name:      "corrections",
		Usage:     "receipt-cam corrections",
		ShortHelp: "list the learned correction rules",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			store, err := root.loadCorrections()
			if err != nil {
				return err
			}
			for _, rule := range store.Rules() {
				fmt.Println(rule)
			}
			return nil
		},
	}
}
